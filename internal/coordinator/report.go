package coordinator

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
)

// ExitStartup is reported when a run could not start at all: the lock is
// held elsewhere or the dump header could not be written.
const ExitStartup = 1

type EntityReport struct {
	Entity          string
	ExitCode        int
	Total           int64
	Eligible        int64
	Copied          int64
	AlreadyArchived int64
	Purged          int64
	Remaining       int64
	Held            int64
	Batches         int
	Discrepancies   int
	StartedAt       time.Time
	FinishedAt      time.Time
	Err             error
}

func (e EntityReport) Failed() bool { return e.Err != nil }

type Report struct {
	RunID      string
	Horizon    time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Entities   []EntityReport

	err error
}

// ExitCode is 0 when every entity type succeeded, otherwise the code of the
// first failed entity type in processing order.
func (r *Report) ExitCode() int {
	if r.err != nil {
		return ExitStartup
	}
	for _, e := range r.Entities {
		if e.Failed() {
			return e.ExitCode
		}
	}
	return 0
}

// Err combines the run error and every entity error, or nil.
func (r *Report) Err() error {
	errs := []error{r.err}
	for _, e := range r.Entities {
		errs = append(errs, e.Err)
	}
	return multierr.Combine(errs...)
}

func (r *Report) Entity(name string) (EntityReport, bool) {
	for _, e := range r.Entities {
		if e.Entity == name {
			return e, true
		}
	}
	return EntityReport{}, false
}

// WriteSummary prints the operator summary, two lines per entity type.
func (r *Report) WriteSummary(w io.Writer) error {
	for _, e := range r.Entities {
		if _, err := fmt.Fprintf(w, ":: %d %s to archive out of %d\n", e.Eligible, e.Entity, e.Total); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, ":: %d %s left\n", e.Remaining, e.Entity); err != nil {
			return err
		}
	}
	return nil
}
