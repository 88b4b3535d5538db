package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Row holds one record keyed by column name. Values are normalized to int64,
// string, time.Time (UTC) or nil.
type Row map[string]any

// Key returns the row identity under pk.
func (r Row) Key(pk string) int64 {
	v, _ := r[pk].(int64)
	return v
}

// ToArchive builds the archive-shaped counterpart of a live row. The primary
// key is carried over unchanged.
func (d *Descriptor) ToArchive(live Row) Row {
	mapping := d.ArchiveMapping()
	out := make(Row, len(mapping))
	for _, m := range mapping {
		out[m.Name] = live[m.From]
	}
	return out
}

// SameContent compares two rows over cols after normalization.
func SameContent(a, b Row, cols []Column) bool {
	for _, c := range cols {
		if !sameValue(a[c.Name], b[c.Name]) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

// Normalize converts a driver value scanned for col into the Row representation.
func Normalize(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case Integer:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int:
			return int64(x), nil
		case []byte:
			return strconv.ParseInt(string(x), 10, 64)
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return parseTimestamp(x)
		case []byte:
			return parseTimestamp(string(x))
		}
	}
	return nil, fmt.Errorf("column %s: cannot use %T as %s", col.Name, v, col.Type)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
