package persistence

import (
	"context"
	"io"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func notNullViolation() error {
	return &pgconn.PgError{Code: "23502", Message: "null value in column"}
}

func duplicateKeyError() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
}

func connectionFailure() error {
	return &pgconn.PgError{Code: "08006", Message: "connection failure"}
}

func TestPersistBatches_AllBulk(t *testing.T) {
	items := make([]int, 230)
	var bulkCalls int
	res, err := PersistBatches(context.Background(), testLog(), items, 100,
		func(_ context.Context, batch []int) (int64, error) {
			bulkCalls++
			return int64(len(batch)), nil
		},
		func(_ context.Context, _ int) error {
			t.Fatal("single insert should not run when bulk succeeds")
			return nil
		},
		func(_ int, _ error) { t.Fatal("unexpected reject") },
	)
	require.NoError(t, err)
	assert.Equal(t, 3, bulkCalls)
	assert.Equal(t, BatchResult{Attempted: 230, Inserted: 230}, res)
}

func TestPersistBatches_DuplicatesCountedFromBulk(t *testing.T) {
	items := make([]int, 10)
	res, err := PersistBatches(context.Background(), testLog(), items, 100,
		func(_ context.Context, batch []int) (int64, error) {
			return int64(len(batch) - 4), nil
		},
		nil,
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Attempted: 10, Inserted: 6, Duplicated: 4}, res)
}

// A bad row fails only its own batch's bulk attempt; the replay salvages the
// rest of the batch and every other batch is untouched.
func TestPersistBatches_BadRowIsolatedByReplay(t *testing.T) {
	items := make([]int, 51)
	for i := range items {
		items[i] = i
	}
	bad := 17

	var rejected []int
	res, err := PersistBatches(context.Background(), testLog(), items, 25,
		func(_ context.Context, batch []int) (int64, error) {
			for _, v := range batch {
				if v == bad {
					return 0, notNullViolation()
				}
			}
			return int64(len(batch)), nil
		},
		func(_ context.Context, v int) error {
			if v == bad {
				return notNullViolation()
			}
			return nil
		},
		func(v int, err error) {
			rejected = append(rejected, v)
			assert.False(t, IsSystemic(err))
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []int{bad}, rejected)
	assert.Equal(t, BatchResult{Attempted: 51, Inserted: 50, Failed: 1}, res)
}

func TestPersistBatches_ReplayCountsDuplicates(t *testing.T) {
	items := []int{1, 2, 3}
	res, err := PersistBatches(context.Background(), testLog(), items, 100,
		func(_ context.Context, _ []int) (int64, error) {
			return 0, notNullViolation()
		},
		func(_ context.Context, v int) error {
			switch v {
			case 1:
				return duplicateKeyError()
			case 2:
				return notNullViolation()
			}
			return nil
		},
		func(_ int, _ error) {},
	)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Attempted: 3, Inserted: 1, Duplicated: 1, Failed: 1}, res)
}

func TestPersistBatches_SystemicBulkErrorAborts(t *testing.T) {
	items := make([]int, 50)
	var singles int
	res, err := PersistBatches(context.Background(), testLog(), items, 25,
		func(_ context.Context, _ []int) (int64, error) {
			return 0, connectionFailure()
		},
		func(_ context.Context, _ int) error {
			singles++
			return nil
		},
		func(_ int, _ error) {},
	)
	require.Error(t, err)
	assert.Zero(t, singles)
	assert.Equal(t, 25, res.Attempted)
	assert.Zero(t, res.Inserted)
}

func TestPersistBatches_SystemicSingleErrorAborts(t *testing.T) {
	items := []int{1, 2, 3}
	res, err := PersistBatches(context.Background(), testLog(), items, 100,
		func(_ context.Context, _ []int) (int64, error) {
			return 0, notNullViolation()
		},
		func(_ context.Context, v int) error {
			if v == 2 {
				return connectionFailure()
			}
			return nil
		},
		func(_ int, _ error) {},
	)
	require.Error(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestPersistBatches_Empty(t *testing.T) {
	res, err := PersistBatches[int](context.Background(), testLog(), nil, 100, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, res)
}
