package db

import (
	"fmt"
	"time"
)

// timeLayout is fixed width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeArg converts an optional time into a query argument.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// timeCol scans a NOT NULL text timestamp into *time.Time.
type timeCol struct{ dst *time.Time }

func (c timeCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dst = time.Time{}
		return nil
	case time.Time:
		*c.dst = v.UTC()
		return nil
	case string:
		t, err := parseTime(v)
		if err != nil {
			return err
		}
		*c.dst = t
		return nil
	case []byte:
		return c.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

// nullTimeCol scans a nullable text timestamp into **time.Time.
type nullTimeCol struct{ dst **time.Time }

func (c nullTimeCol) Scan(src any) error {
	if src == nil {
		*c.dst = nil
		return nil
	}
	var t time.Time
	if err := (timeCol{dst: &t}).Scan(src); err != nil {
		return err
	}
	*c.dst = &t
	return nil
}
