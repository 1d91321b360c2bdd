package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/store"
	"github.com/fieldops/crewroster/internal/store/memory"
	"github.com/fieldops/crewroster/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestWithTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.New().WithTx(ctx, func(store.Store) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTx_SerializesWriters(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	// Every writer checks the code is free and then claims it; only one
	// may see it free.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.WithTx(ctx, func(tx store.Store) error {
				_, err := tx.Companies().GetByCode(ctx, "RACE22")
				if err == nil {
					return nil
				}
				if !errors.Is(err, company.ErrNotFound) {
					return err
				}
				if err := tx.Companies().Create(ctx, &company.Company{Name: "Race", Code: "RACE22", IsActive: true}); err != nil {
					return err
				}
				mu.Lock()
				created++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	_, err := st.Companies().GetByCode(ctx, "RACE22")
	require.NoError(t, err)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	c := &company.Company{Name: "Acme", Code: "ACME22", IsActive: true}
	require.NoError(t, st.Companies().Create(ctx, c))

	got, err := st.Companies().GetByID(ctx, c.ID)
	require.NoError(t, err)
	got.Name = "Mutated"

	again, err := st.Companies().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", again.Name)
}
