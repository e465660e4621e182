package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// localDateTime is the zone-less layout the verification backend emits for
// admin timestamps. Values in this layout are read as UTC.
const localDateTime = "2006-01-02T15:04:05.999999999"

// Timestamp decodes either RFC 3339 or zone-less local date-times and
// always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.Parse(localDateTime, raw)
	if err != nil {
		return fmt.Errorf("timestamp %q: unsupported layout", raw)
	}
	t.Time = parsed
	return nil
}
