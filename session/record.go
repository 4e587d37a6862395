package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRecordCorrupt is returned when a stored record cannot be parsed.
var ErrRecordCorrupt = errors.New("session record corrupt")

// Record is the persisted identity of a logged-in tab.
type Record struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
	Exp    int64  `json:"exp"`
	Token  string `json:"token"`
}

// Expired reports whether the record's expiry (epoch seconds) lies before now,
// compared at millisecond precision.
func (r Record) Expired(now time.Time) bool {
	return r.Exp*1000 < now.UnixMilli()
}

// EncodeRecord renders r in its storage form.
func EncodeRecord(r Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeRecord parses a stored record.
func DecodeRecord(raw string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	return r, nil
}
