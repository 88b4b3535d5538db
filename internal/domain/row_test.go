package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToArchive_PreservesIdentity(t *testing.T) {
	d := Requests()
	d.Archive = []FieldMapping{{Name: "id"}, {Name: "path", From: "file"}}

	live := Row{"id": int64(42), "file": "/hpss/a", "status": int64(150)}
	arch := d.ToArchive(live)

	assert.Equal(t, int64(42), arch.Key("id"))
	assert.Equal(t, Row{"id": int64(42), "path": "/hpss/a"}, arch)
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name string
		col  Column
		in   any
		want any
	}{
		{"nil", Column{Name: "x", Type: Integer}, nil, nil},
		{"int32", Column{Name: "x", Type: Integer}, int32(7), int64(7)},
		{"int bytes", Column{Name: "x", Type: Integer}, []byte("12"), int64(12)},
		{"string bytes", Column{Name: "x", Type: String, Length: 8}, []byte("IT0042"), "IT0042"},
		{"time to utc", Column{Name: "x", Type: Timestamp}, ts, ts.UTC()},
		{"sqlite text time", Column{Name: "x", Type: Timestamp}, "2024-03-01 09:00:00+00:00", ts.UTC()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Normalize(Column{Name: "x", Type: Integer}, 1.5)
	assert.Error(t, err)
}

func TestSameContent(t *testing.T) {
	cols := []Column{{Name: "id", Type: Integer}, {Name: "end_time", Type: Timestamp}, {Name: "message", Type: String, Length: 10}}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := Row{"id": int64(1), "end_time": ts, "message": nil}
	b := Row{"id": int64(1), "end_time": ts.In(time.FixedZone("X", 7200)), "message": nil}
	assert.True(t, SameContent(a, b, cols))

	b["message"] = "changed"
	assert.False(t, SameContent(a, b, cols))
}
