package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/notesync/internal/flagx"
	"github.com/dmitrijs2005/notesync/internal/timex"
)

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnvVar = "NOTESYNC_CONFIG"

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Durations use timex.Duration, so JSON may hold "3s" or nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DatabasePath        string         `json:"database_path"`
	DebounceInterval    timex.Duration `json:"debounce_interval"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file. Keys that
// are absent keep their current value. Read or unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(ConfigEnvVar)
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setDuration(&cfg.DebounceInterval, jc.DebounceInterval)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
