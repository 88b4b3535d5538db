package archive

import (
	"context"
	"time"

	"github.com/SirClappington/enqarchive/internal/domain"
	apperrors "github.com/SirClappington/enqarchive/internal/errors"
	"github.com/SirClappington/enqarchive/internal/storage"
)

// Reader is the read side of a source store.
type Reader interface {
	Count(ctx context.Context, table string, f *storage.Filter) (int64, error)
	Keys(ctx context.Context, table, pk string, f *storage.Filter) ([]int64, error)
}

// Selector finds the rows of an entity type that are due for archiving:
// status in the descriptor's eligible set and age field strictly before the
// horizon.
type Selector struct{}

func NewSelector() *Selector { return &Selector{} }

// Filter builds the eligibility predicate for d at horizon.
func Filter(d *domain.Descriptor, horizon time.Time) *storage.Filter {
	return &storage.Filter{
		StatusColumn: d.StatusColumn(),
		Statuses:     d.EligibleStatuses,
		AgeColumn:    d.AgeField,
		Before:       horizon,
	}
}

// Select returns the eligible primary keys in ascending order.
func (s *Selector) Select(ctx context.Context, src Reader, d *domain.Descriptor, horizon time.Time) ([]int64, error) {
	keys, err := src.Keys(ctx, d.Table, d.PrimaryKey, Filter(d, horizon))
	if err != nil {
		return nil, scope(err, d, apperrors.KindStoreUnavailable)
	}
	return keys, nil
}

func (s *Selector) CountTotal(ctx context.Context, src Reader, d *domain.Descriptor) (int64, error) {
	n, err := src.Count(ctx, d.Table, nil)
	if err != nil {
		return 0, scope(err, d, apperrors.KindStoreUnavailable)
	}
	return n, nil
}

func (s *Selector) CountEligible(ctx context.Context, src Reader, d *domain.Descriptor, horizon time.Time) (int64, error) {
	n, err := src.Count(ctx, d.Table, Filter(d, horizon))
	if err != nil {
		return 0, scope(err, d, apperrors.KindStoreUnavailable)
	}
	return n, nil
}

// scope attributes err to d's entity type, wrapping foreign errors as kind.
func scope(err error, d *domain.Descriptor, kind apperrors.Kind) error {
	var e *apperrors.Error
	if apperrors.As(err, &e) {
		return e.WithEntity(d.Name)
	}
	return (&apperrors.Error{Kind: kind, Cause: err}).WithEntity(d.Name)
}
