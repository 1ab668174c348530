package common

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// FormatTimestamp formats a timestamp as the number of milliseconds since the epoch.
func FormatTimestamp(timestamp time.Time) string {
	return strconv.FormatInt(timestamp.UnixNano()/int64(time.Millisecond), 10)
}

// FixTimestamp converts a timestamp that may be in either epoch millisecond or RFC 3339 format
// to epoch milliseconds. Empty strings are returned unchanged.
func FixTimestamp(timestamp string) (string, error) {
	if timestamp == "" {
		return "", nil
	}

	// The timestamp is already in the correct format if it's an integer.
	if _, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		return timestamp, nil
	}

	// RFC3339Nano parsing also accepts timestamps without fractional seconds.
	parsed, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return "", errors.Wrapf(err, "unrecognized timestamp format: %s", timestamp)
	}
	return FormatTimestamp(parsed), nil
}
