package upstream

import "time"

// serviceTimeLayout is the exact format the audit endpoints expect: local
// time, zero-padded, no timezone designator. Not ISO-8601.
const serviceTimeLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t for the service-time audit endpoints.
func FormatTimestamp(t time.Time) string {
	return t.Format(serviceTimeLayout)
}

// ParseServiceTime reverses FormatTimestamp, interpreting the value in local
// time.
func ParseServiceTime(raw string) (time.Time, error) {
	return time.ParseInLocation(serviceTimeLayout, raw, time.Local)
}
