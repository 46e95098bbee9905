package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimestampLayout is how the time column is stored. Local wall time without a
// zone keeps SQLite's date(time) on the local calendar day.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Timestamp is a time.Time persisted as local-time TEXT.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (Timestamp) GormDataType() string {
	return "text"
}

func (ts Timestamp) Value() (driver.Value, error) {
	return ts.Local().Format(TimestampLayout), nil
}

func (ts *Timestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		ts.Time = time.Time{}
		return nil
	case time.Time:
		ts.Time = v.Local()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp value %T", value)
	}
}

func (ts *Timestamp) parse(s string) error {
	// Fractional seconds are accepted after the seconds field even though
	// the layout omits them.
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}

	ts.Time = t
	return nil
}

func (ts Timestamp) String() string {
	return ts.Local().Format(TimestampLayout)
}
