package archive_test

import (
	"context"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/SirClappington/enqarchive/internal/archive"
	"github.com/SirClappington/enqarchive/internal/domain"
	"github.com/SirClappington/enqarchive/internal/storage/storagetest"
)

func TestPartition(t *testing.T) {
	assert.Equal(t, [][]int64{{1, 2}, {3}}, archive.Partition([]int64{1, 2, 3}, 2))
	assert.Equal(t, [][]int64{{1, 2, 3}}, archive.Partition([]int64{1, 2, 3}, 1000))
	assert.Empty(t, archive.Partition(nil, 10))
	assert.Equal(t, [][]int64{{1}, {2}}, archive.Partition([]int64{1, 2}, 0))
}

func TestProperty_PartitionCoversKeysOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("batches concatenate back to the input in order", prop.ForAll(
		func(keys []int64, size int) bool {
			var joined []int64
			for _, b := range archive.Partition(keys, size) {
				joined = append(joined, b...)
			}
			return slices.Equal(joined, keys)
		},
		gen.SliceOf(gen.Int64()),
		gen.IntRange(1, 50),
	))

	properties.Property("every batch is non-empty and at most size keys", prop.ForAll(
		func(keys []int64, size int) bool {
			batches := archive.Partition(keys, size)
			if len(batches) != (len(keys)+size-1)/size {
				return false
			}
			for _, b := range batches {
				if len(b) == 0 || len(b) > size {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

var requestStatuses = []int64{
	domain.RequestCreated, domain.RequestSubmitted, domain.RequestQueued,
	domain.RequestStaged, domain.RequestOnDisk, domain.RequestFailed, domain.RequestInvalid,
}

// TestProperty_MoveArchivesExactlyEligibleRows checks that after a run every
// row is in exactly one store, and the archived ones are exactly those with an
// eligible status and an end time strictly before the horizon.
func TestProperty_MoveArchivesExactlyEligibleRows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)
	d := domain.Requests()

	properties.Property("archive holds the eligible rows and source the rest", prop.ForAll(
		func(statusIdx []int, ageDays []int, maxRows int) bool {
			n := min(len(statusIdx), len(ageDays))
			source := storagetest.Open(t, "src")
			arc := storagetest.Open(t, "arc")

			rows := make([]domain.Row, 0, n)
			var wantArchived, wantLeft []int64
			for i := 0; i < n; i++ {
				id := int64(i + 1)
				status := requestStatuses[statusIdx[i]]
				end := horizon.AddDate(0, 0, ageDays[i])
				rows = append(rows, storagetest.Request(id, status, end))
				if d.IsEligibleStatus(status) && end.Before(horizon) {
					wantArchived = append(wantArchived, id)
				} else {
					wantLeft = append(wantLeft, id)
				}
			}
			storagetest.Seed(t, source, d, rows...)
			if err := arc.EnsureArchiveTable(context.Background(), d); err != nil {
				return false
			}

			res, err := archive.NewMover(source, arc, nil, archive.Options{MaxRows: maxRows}, nil, nil).
				Move(context.Background(), d, horizon)
			if err != nil {
				return false
			}
			return slices.Equal(storagetest.Keys(t, arc, d.ArchiveTable), wantArchived) &&
				slices.Equal(storagetest.Keys(t, source, d.Table), wantLeft) &&
				res.Purged == int64(len(wantArchived)) &&
				res.Remaining == int64(len(wantLeft))
		},
		gen.SliceOfN(12, gen.IntRange(0, len(requestStatuses)-1)),
		gen.SliceOfN(12, gen.IntRange(-3, 3)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
