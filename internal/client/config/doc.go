// Package config loads runtime configuration for the notesync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c / -config, or NOTESYNC_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "notes.db",
//	  "debounce_interval": "1s",
//	  "log_file": "notesync.log",
//	  "log_level": "info"
//	}
package config
