package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/model"
	"fillScope/internal/storage"
)

func TestPutEventBatchNaturalKey(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := model.Event{ID: uuid.New(), TransactionHash: "0xaa", LogIndex: 1, Type: model.EventTypeFill}
	dup := model.Event{ID: uuid.New(), TransactionHash: "0xaa", LogIndex: 1, Type: model.EventTypeFill}

	n, err := store.PutEventBatch(ctx, []model.Event{first, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetEvent(ctx, dup.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateFillsIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	existing := uuid.New()
	require.NoError(t, store.CreateFills(ctx, []model.Fill{{ID: existing, EventID: existing}}))

	fresh := uuid.New()
	err := store.CreateFills(ctx, []model.Fill{
		{ID: fresh, EventID: fresh},
		{ID: existing, EventID: existing},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	ok, err := store.FillExists(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.FillWrites)
}

func TestUnscheduledEventsAndMark(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	a := model.Event{ID: uuid.New(), TransactionHash: "0x01", BlockNumber: 2, Type: model.EventTypeFill}
	b := model.Event{ID: uuid.New(), TransactionHash: "0x02", BlockNumber: 1, Type: model.EventTypeLimitOrderFilled}
	c := model.Event{ID: uuid.New(), TransactionHash: "0x03", BlockNumber: 3, Type: model.EventTypeBridgeFill}
	_, err := store.PutEventBatch(ctx, []model.Event{a, b, c})
	require.NoError(t, err)

	got, err := store.UnscheduledEvents(ctx, storage.FlagFillCreation, model.FillEventTypes(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)

	require.NoError(t, store.MarkScheduled(ctx, storage.FlagFillCreation, []uuid.UUID{b.ID}))

	got, err = store.UnscheduledEvents(ctx, storage.FlagFillCreation, model.FillEventTypes(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = store.UnscheduledEvents(ctx, storage.FlagTransactionFetch, model.AllEventTypes(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInsertMissingTokens(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	created, err := store.InsertMissingTokens(ctx, []model.TokenRef{{Address: "0xABC", Type: model.TokenTypeERC20}})
	require.NoError(t, err)
	assert.Equal(t, []model.TokenRef{{Address: "0xabc", Type: model.TokenTypeERC20}}, created)

	unresolved, err := store.InsertMissingTokens(ctx, []model.TokenRef{
		{Address: "0xabc", Type: model.TokenTypeERC20},
		{Address: "0xABC", Type: model.TokenTypeERC20},
	})
	require.NoError(t, err)
	assert.Equal(t, created, unresolved)

	require.NoError(t, store.UpdateTokenMeta(ctx, "0xabc", model.TokenMeta{Symbol: "ABC"}))
	unresolved, err = store.InsertMissingTokens(ctx, []model.TokenRef{{Address: "0xabc", Type: model.TokenTypeERC20}})
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	known, err := store.KnownTokens(ctx, []string{"0xabc", "0xdef"})
	require.NoError(t, err)
	assert.True(t, known.Has("0xabc"))
	assert.False(t, known.Has("0xdef"))
}
