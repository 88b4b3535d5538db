package domain

import (
	"regexp"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

type ColumnType string

const (
	Integer   ColumnType = "integer"
	String    ColumnType = "string"
	Timestamp ColumnType = "timestamp"
)

type Column struct {
	Name   string     `yaml:"name"`
	Type   ColumnType `yaml:"type"`
	Length int        `yaml:"length,omitempty"`
}

// FieldMapping names an archive column and the live column it is copied from.
type FieldMapping struct {
	Name string `yaml:"name"`
	From string `yaml:"from,omitempty"`
}

// Descriptor declares how one entity type is archived: its live and archive
// tables, the identity column, and the eligibility fields.
type Descriptor struct {
	Name             string         `yaml:"name"`
	Table            string         `yaml:"table"`
	ArchiveTable     string         `yaml:"archive_table"`
	PrimaryKey       string         `yaml:"primary_key"`
	StatusField      string         `yaml:"status_field,omitempty"`
	EligibleStatuses []int64        `yaml:"eligible_statuses"`
	AgeField         string         `yaml:"age_field"`
	ExitCode         int            `yaml:"exit_code,omitempty"`
	Columns          []Column       `yaml:"columns"`
	Archive          []FieldMapping `yaml:"archive,omitempty"`
}

const DefaultStatusField = "status"

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column looks up a live column by name.
func (d *Descriptor) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (d *Descriptor) statusField() string {
	if d.StatusField == "" {
		return DefaultStatusField
	}
	return d.StatusField
}

// StatusColumn returns the column holding the status code.
func (d *Descriptor) StatusColumn() string { return d.statusField() }

// ColumnNames returns the live column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// ArchiveMapping returns the effective field mapping, identity when none is declared.
func (d *Descriptor) ArchiveMapping() []FieldMapping {
	if len(d.Archive) == 0 {
		out := make([]FieldMapping, len(d.Columns))
		for i, c := range d.Columns {
			out[i] = FieldMapping{Name: c.Name, From: c.Name}
		}
		return out
	}
	out := make([]FieldMapping, len(d.Archive))
	for i, m := range d.Archive {
		if m.From == "" {
			m.From = m.Name
		}
		out[i] = m
	}
	return out
}

// ArchiveColumns returns the archive table shape, typed after the live columns
// each archive field is copied from.
func (d *Descriptor) ArchiveColumns() []Column {
	mapping := d.ArchiveMapping()
	out := make([]Column, 0, len(mapping))
	for _, m := range mapping {
		src, _ := d.Column(m.From)
		out = append(out, Column{Name: m.Name, Type: src.Type, Length: src.Length})
	}
	return out
}

// IsEligibleStatus reports whether status is one of the archivable codes.
func (d *Descriptor) IsEligibleStatus(status int64) bool {
	for _, s := range d.EligibleStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Validate checks the descriptor before any store is touched.
func (d *Descriptor) Validate() error {
	fail := func(format string, args ...any) error {
		return apperrors.Configuration(format, args...).WithEntity(d.Name)
	}

	if d.Name == "" {
		return apperrors.Configuration("descriptor name is required")
	}
	for _, ident := range []struct{ what, v string }{
		{"table", d.Table},
		{"archive table", d.ArchiveTable},
	} {
		if !identifierRe.MatchString(ident.v) {
			return fail("%s %q is not a valid identifier", ident.what, ident.v)
		}
	}
	if d.Table == d.ArchiveTable {
		return fail("archive table must differ from source table %q", d.Table)
	}
	if len(d.Columns) == 0 {
		return fail("no columns declared")
	}

	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if !identifierRe.MatchString(c.Name) {
			return fail("column %q is not a valid identifier", c.Name)
		}
		if seen[c.Name] {
			return fail("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case Integer, Timestamp:
		case String:
			if c.Length <= 0 {
				return fail("string column %q needs a positive length", c.Name)
			}
		default:
			return fail("column %q has unknown type %q", c.Name, c.Type)
		}
	}

	pk, ok := d.Column(d.PrimaryKey)
	if !ok {
		return fail("primary key %q is not a declared column", d.PrimaryKey)
	}
	if pk.Type != Integer {
		return fail("primary key %q must be an integer column", d.PrimaryKey)
	}
	if len(d.EligibleStatuses) == 0 {
		return fail("eligible statuses must not be empty")
	}
	status, ok := d.Column(d.statusField())
	if !ok || status.Type != Integer {
		return fail("status field %q must be an integer column", d.statusField())
	}
	age, ok := d.Column(d.AgeField)
	if !ok {
		return fail("age field %q is not a declared column", d.AgeField)
	}
	if age.Type != Timestamp {
		return fail("age field %q must be a timestamp column", d.AgeField)
	}

	return d.validateArchive()
}

func (d *Descriptor) validateArchive() error {
	if len(d.Archive) == 0 {
		return nil
	}
	targets := make(map[string]bool, len(d.Archive))
	pkMapped := false
	for _, m := range d.ArchiveMapping() {
		if !identifierRe.MatchString(m.Name) {
			return apperrors.Configuration("archive column %q is not a valid identifier", m.Name).WithEntity(d.Name)
		}
		if targets[m.Name] {
			return apperrors.Configuration("duplicate archive column %q", m.Name).WithEntity(d.Name)
		}
		targets[m.Name] = true
		if _, ok := d.Column(m.From); !ok {
			return apperrors.Configuration("archive column %q maps unknown column %q", m.Name, m.From).WithEntity(d.Name)
		}
		if m.From == d.PrimaryKey || m.Name == d.PrimaryKey {
			if m.From != m.Name {
				return apperrors.Configuration("primary key %q must be archived under its own name", d.PrimaryKey).WithEntity(d.Name)
			}
			pkMapped = true
		}
	}
	if !pkMapped {
		return apperrors.Configuration("archive mapping must keep primary key %q", d.PrimaryKey).WithEntity(d.Name)
	}
	return nil
}
