package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lypto/reward-engine/ledger"
	"github.com/lypto/reward-engine/minting"
	"github.com/lypto/reward-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// RECORD STORE TESTS
// =============================================================================

func TestStore_CreateIfAbsent_DuplicateRejected(t *testing.T) {
	// GIVEN: A record at a derived address
	// WHEN: A second create targets the same address
	// THEN: ErrAlreadyExists; the original value survives

	store := newTestStore(t)
	ctx := context.Background()
	addr := ledger.TransactionAddress("order-1")

	err := store.CreateIfAbsent(ctx, addr, ledger.KindTransaction, []byte(`{"amount":1000}`))
	require.NoError(t, err)

	err = store.CreateIfAbsent(ctx, addr, ledger.KindTransaction, []byte(`{"amount":9999}`))
	assert.ErrorIs(t, err, ledger.ErrAlreadyExists)

	value, err := store.Read(ctx, addr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":1000}`, string(value))
}

func TestStore_Mutate_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addr := ledger.GlobalStateAddress()

	initial, _ := json.Marshal(ledger.GlobalState{Authority: "a1", Mint: "m1"})
	require.NoError(t, store.CreateIfAbsent(ctx, addr, ledger.KindGlobalState, initial))

	next, err := store.Mutate(ctx, addr, func(old []byte) ([]byte, error) {
		var st ledger.GlobalState
		if err := json.Unmarshal(old, &st); err != nil {
			return nil, err
		}
		st.TotalRewardsMinted += 20
		st.TotalTransactions++
		return json.Marshal(st)
	})
	require.NoError(t, err)

	var st ledger.GlobalState
	require.NoError(t, json.Unmarshal(next, &st))
	assert.Equal(t, uint64(20), st.TotalRewardsMinted)
	assert.Equal(t, uint64(1), st.TotalTransactions)

	// The mutation is durable.
	value, err := store.Read(ctx, addr)
	require.NoError(t, err)
	assert.JSONEq(t, string(next), string(value))
}

func TestStore_Mutate_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Mutate(context.Background(), "missing", func(old []byte) ([]byte, error) {
		t.Fatal("fn must not run for a missing record")
		return nil, nil
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_Mutate_FnError_RollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addr := ledger.GlobalStateAddress()

	require.NoError(t, store.CreateIfAbsent(ctx, addr, ledger.KindGlobalState, []byte(`{"v":1}`)))

	_, err := store.Mutate(ctx, addr, func([]byte) ([]byte, error) {
		return nil, assert.AnError
	})
	assert.Error(t, err)

	value, err := store.Read(ctx, addr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(value))
}

func TestStore_Read_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_ListByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIfAbsent(ctx, ledger.TransactionAddress("t1"), ledger.KindTransaction, []byte(`{"id":"t1"}`)))
	require.NoError(t, store.CreateIfAbsent(ctx, ledger.TransactionAddress("t2"), ledger.KindTransaction, []byte(`{"id":"t2"}`)))
	require.NoError(t, store.CreateIfAbsent(ctx, ledger.GlobalStateAddress(), ledger.KindGlobalState, []byte(`{}`)))

	records, err := store.ListByKind(ctx, ledger.KindTransaction)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, ledger.KindTransaction, r.Kind)
		assert.False(t, r.CreatedAt.IsZero())
	}

	states, err := store.ListByKind(ctx, ledger.KindGlobalState)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

// =============================================================================
// CREDIT LOG TESTS
// =============================================================================

func TestStore_CreditLog_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := minting.CreditEntry{
		ID:        uuid.NewString(),
		Customer:  "customer-1",
		Mint:      "mint-1",
		Amount:    20,
		CreatedAt: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
	second := minting.CreditEntry{
		ID:        uuid.NewString(),
		Customer:  "customer-1",
		Mint:      "mint-1",
		Amount:    5,
		CreatedAt: time.Date(2025, time.June, 1, 11, 0, 0, 0, time.UTC),
	}
	other := minting.CreditEntry{
		ID:        uuid.NewString(),
		Customer:  "customer-2",
		Mint:      "mint-1",
		Amount:    7,
		CreatedAt: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.AppendCredit(ctx, first))
	require.NoError(t, store.AppendCredit(ctx, second))
	require.NoError(t, store.AppendCredit(ctx, other))

	entries, err := store.CreditsForCustomer(ctx, "customer-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, uint64(20), entries[0].Amount)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.True(t, entries[0].CreatedAt.Before(entries[1].CreatedAt))
}

func TestStore_CreditLog_DuplicateID_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := minting.CreditEntry{
		ID:        "fixed-id",
		Customer:  "customer-1",
		Mint:      "mint-1",
		Amount:    20,
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, store.AppendCredit(ctx, entry))
	assert.Error(t, store.AppendCredit(ctx, entry))
}

// =============================================================================
// ENGINE-OVER-SQLITE INTEGRATION
// =============================================================================

func TestStore_EndToEnd_WithEngineAndMinting(t *testing.T) {
	// The full production wiring: engine and mint ledger sharing one
	// SQLite store, records and credit trail side by side.

	store := newTestStore(t)
	ctx := context.Background()

	mint := minting.NewLedger(store, store, nil)
	engine := ledger.NewEngine(store, mint)

	_, err := engine.Initialize(ctx, "authority-1", "mint-1")
	require.NoError(t, err)

	rec, err := engine.ProcessPayment(ctx, ledger.Payment{
		Merchant:      "merchant-1",
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), rec.RewardUnits)

	balance, err := mint.Balance(ctx, "customer-1", "mint-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), balance)

	entries, err := store.CreditsForCustomer(ctx, "customer-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(20), entries[0].Amount)

	state, err := engine.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.TotalTransactions)
	assert.Equal(t, uint64(20), state.TotalRewardsMinted)
}
