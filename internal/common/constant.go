// Package common contains shared constants and sentinel errors used across
// notesync components.
package common

import "time"

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// NowMillis returns the current wall-clock time as milliseconds since the
// Unix epoch, the unit every note timestamp is stored in.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
