package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

const dateLayout = "2006-01-02"

// Date accepts "YYYY-MM-DD" or an RFC 3339 timestamp. JSON null leaves it
// unset.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return errors.New("invalid date")
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
