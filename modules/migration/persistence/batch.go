package persistence

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// BulkFunc attempts one duplicate-tolerant bulk insert of a batch and
// returns the number of rows actually inserted.
type BulkFunc[T any] func(ctx context.Context, batch []T) (int64, error)

// SingleFunc inserts one row without duplicate tolerance.
type SingleFunc[T any] func(ctx context.Context, item T) error

// RejectFunc receives each row that individually failed, with the store's
// error.
type RejectFunc[T any] func(item T, err error)

// BatchResult accounts for every row handed to PersistBatches:
// Attempted = Inserted + Duplicated + Failed.
type BatchResult struct {
	Attempted  int
	Inserted   int
	Duplicated int
	Failed     int
}

// PersistBatches writes items in bounded batches using a two-tier strategy:
// each batch is first attempted as one bulk insert with skip-duplicates
// semantics; if the bulk call errors, every row of that batch is replayed
// individually so only the genuinely bad rows are rejected. Batches are
// written strictly one after another. A systemic store failure aborts and
// returns the error; the partial result is still meaningful.
func PersistBatches[T any](
	ctx context.Context,
	log *logrus.Entry,
	items []T,
	batchSize int,
	bulk BulkFunc[T],
	single SingleFunc[T],
	onReject RejectFunc[T],
) (BatchResult, error) {
	var res BatchResult
	if batchSize <= 0 {
		batchSize = 100
	}

	total := (len(items) + batchSize - 1) / batchSize
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]
		res.Attempted += len(batch)

		log.WithFields(logrus.Fields{
			"batch": i/batchSize + 1,
			"of":    total,
			"rows":  len(batch),
		}).Debug("writing batch")

		inserted, err := bulk(ctx, batch)
		if err == nil {
			res.Inserted += int(inserted)
			res.Duplicated += len(batch) - int(inserted)
			continue
		}
		if IsSystemic(err) {
			return res, fmt.Errorf("bulk insert: %w", err)
		}

		log.WithError(err).WithField("rows", len(batch)).
			Warn("bulk insert failed, replaying batch row by row")

		for _, item := range batch {
			switch err := single(ctx, item); {
			case err == nil:
				res.Inserted++
			case IsDuplicate(err):
				res.Duplicated++
			case IsSystemic(err):
				return res, fmt.Errorf("single insert: %w", err)
			default:
				res.Failed++
				onReject(item, err)
			}
		}
	}
	return res, nil
}
