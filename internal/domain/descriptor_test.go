package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

func TestBuiltinDescriptorsAreValid(t *testing.T) {
	for _, d := range Builtin() {
		require.NoError(t, d.Validate(), d.Name)
	}
}

func TestBuiltinStatusVocabulariesAreIndependent(t *testing.T) {
	req, q := Requests(), Queues()
	assert.True(t, req.IsEligibleStatus(RequestStaged))
	assert.False(t, req.IsEligibleStatus(QueueEnded))
	assert.True(t, q.IsEligibleStatus(QueueEnded))
	assert.False(t, q.IsEligibleStatus(RequestStaged))
	assert.NotEqual(t, req.ExitCode, q.ExitCode)
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Descriptor)
	}{
		{"primary key missing", func(d *Descriptor) { d.PrimaryKey = "uid" }},
		{"primary key not integer", func(d *Descriptor) { d.PrimaryKey = "file" }},
		{"empty statuses", func(d *Descriptor) { d.EligibleStatuses = nil }},
		{"age field not timestamp", func(d *Descriptor) { d.AgeField = "tries" }},
		{"age field missing", func(d *Descriptor) { d.AgeField = "finished" }},
		{"status field not integer", func(d *Descriptor) { d.StatusField = "message" }},
		{"bad table identifier", func(d *Descriptor) { d.Table = "requests; drop" }},
		{"same tables", func(d *Descriptor) { d.ArchiveTable = d.Table }},
		{"duplicate column", func(d *Descriptor) { d.Columns = append(d.Columns, Column{Name: "id", Type: Integer}) }},
		{"string without length", func(d *Descriptor) { d.Columns[1].Length = 0 }},
		{"unknown type", func(d *Descriptor) { d.Columns[1].Type = "blob" }},
		{"archive drops primary key", func(d *Descriptor) {
			d.Archive = []FieldMapping{{Name: "file"}, {Name: "end_time"}}
		}},
		{"archive renames primary key", func(d *Descriptor) {
			d.Archive = []FieldMapping{{Name: "request_id", From: "id"}}
		}},
		{"archive maps unknown column", func(d *Descriptor) {
			d.Archive = []FieldMapping{{Name: "id"}, {Name: "path", From: "filename"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Requests()
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration), "got %v", err)
		})
	}
}

func TestDescriptor_NarrowArchiveMapping(t *testing.T) {
	d := Requests()
	d.Archive = []FieldMapping{
		{Name: "id"},
		{Name: "path", From: "file"},
		{Name: "end_time"},
		{Name: "status"},
	}
	require.NoError(t, d.Validate())

	cols := d.ArchiveColumns()
	require.Len(t, cols, 4)
	assert.Equal(t, Column{Name: "path", Type: String, Length: 1024}, cols[1])
	assert.Equal(t, Timestamp, cols[2].Type)
}

func TestDescriptor_DefaultStatusField(t *testing.T) {
	d := Queues()
	d.StatusField = ""
	require.NoError(t, d.Validate())
	assert.Equal(t, "status", d.StatusColumn())
}
