package sequence_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"github.com/heropets/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNext_StartsAtOneAndIncrements(t *testing.T) {
	alloc := sequence.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := alloc.Next(ctx, sequence.Pets)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNext_CountersAreIndependent(t *testing.T) {
	alloc := sequence.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := alloc.Next(ctx, sequence.Users)
		require.NoError(t, err)
	}
	id, err := alloc.Next(ctx, sequence.Heroes)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	snap, err := alloc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap[sequence.Users])
	assert.Equal(t, int64(1), snap[sequence.Heroes])
	assert.Equal(t, int64(0), snap[sequence.Pets])
}

func TestNext_ConcurrentCallersGetDistinctValues(t *testing.T) {
	alloc := sequence.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	const workers, perWorker = 8, 10
	var (
		mu  sync.Mutex
		all []int64
		wg  sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var prev int64
			for i := 0; i < perWorker; i++ {
				id, err := alloc.Next(ctx, sequence.GameEvents)
				if !assert.NoError(t, err) {
					return
				}
				assert.Greater(t, id, prev, "values must increase for a single caller")
				prev = id
				mu.Lock()
				all = append(all, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, all, workers*perWorker)
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, id := range all {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestWithTx_RollbackReturnsValue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alloc := sequence.New(db)
	ctx := context.Background()

	_, err := alloc.Next(ctx, sequence.Pets)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.Transaction(func(tx *gorm.DB) error {
		id, err := alloc.WithTx(tx).Next(ctx, sequence.Pets)
		require.NoError(t, err)
		assert.Equal(t, int64(2), id)
		return boom
	})
	require.ErrorIs(t, err, boom)

	cur, err := alloc.Current(ctx, sequence.Pets)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cur, "allocation rolled back with the enclosing transaction")
}

func TestNext_StorageFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&model.Counter{}))

	_, err := sequence.New(db).Next(context.Background(), sequence.Users)
	assert.Error(t, err)
}

func TestCurrent_Absent(t *testing.T) {
	cur, err := sequence.New(testutil.SetupTestDB(t)).Current(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Zero(t, cur)
}

func TestAtLeast_RaisesButNeverLowers(t *testing.T) {
	alloc := sequence.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, alloc.AtLeast(ctx, sequence.Pets, 7))
	id, err := alloc.Next(ctx, sequence.Pets)
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)

	require.NoError(t, alloc.AtLeast(ctx, sequence.Pets, 3))
	cur, err := alloc.Current(ctx, sequence.Pets)
	require.NoError(t, err)
	assert.Equal(t, int64(8), cur)
}
