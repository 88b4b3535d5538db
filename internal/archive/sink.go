package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SirClappington/enqarchive/internal/domain"
	"github.com/SirClappington/enqarchive/internal/storage"
)

// Sink receives archive records as part of the copy phase. Write must not
// return before the records are durable.
type Sink interface {
	Write(ctx context.Context, d *domain.Descriptor, rows []domain.Row) error
}

// SQLDump writes one portable INSERT statement per archive record.
type SQLDump struct {
	w    *bufio.Writer
	file *os.File
}

func NewSQLDump(w io.Writer) *SQLDump {
	return &SQLDump{w: bufio.NewWriter(w)}
}

// CreateSQLDump appends to the dump file at path, creating it if needed.
func CreateSQLDump(path string) (*SQLDump, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &SQLDump{w: bufio.NewWriter(f), file: f}, nil
}

// Begin writes a comment header identifying the run.
func (s *SQLDump) Begin(runID string, horizon time.Time) error {
	fmt.Fprintf(s.w, "-- enqarchive run %s, horizon %s\n", runID, horizon.UTC().Format(time.RFC3339))
	return s.flush()
}

func (s *SQLDump) Write(ctx context.Context, d *domain.Descriptor, rows []domain.Row) error {
	cols := d.ArchiveColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = storage.Quote(c.Name)
	}
	prefix := "INSERT INTO " + storage.Quote(d.ArchiveTable) + " (" + strings.Join(names, ", ") + ") VALUES ("

	vals := make([]string, len(cols))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, c := range cols {
			vals[i] = Literal(row[c.Name])
		}
		s.w.WriteString(prefix)
		s.w.WriteString(strings.Join(vals, ", "))
		s.w.WriteString(");\n")
	}
	return s.flush()
}

func (s *SQLDump) flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.file != nil {
		return s.file.Sync()
	}
	return nil
}

func (s *SQLDump) Close() error {
	err := s.flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Literal renders a normalized row value as a portable SQL literal.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05.999999999") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}
