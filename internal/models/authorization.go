package models

import "time"

// Kind distinguishes the two authorization tables.
type Kind string

const (
	KindFile Kind = "file"
	KindGit  Kind = "git"
)

// Timestamp converts t to the seconds-since-epoch representation stored in the tables.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromTimestamp converts a stored timestamp back to a time.Time.
func FromTimestamp(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
