package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage/memory"
)

type fakeES struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
	reply  string
}

func newFakeES(t *testing.T, status int, reply string) (*fakeES, *BulkSink) {
	t.Helper()
	es := &fakeES{status: status, reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		es.mu.Lock()
		es.bodies = append(es.bodies, body)
		es.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(es.status)
		_, _ = w.Write([]byte(es.reply))
	}))
	t.Cleanup(srv.Close)

	sink, err := NewBulkSink(Config{URLs: []string{srv.URL}}, nil)
	require.NoError(t, err)
	return es, sink
}

func docs() []Document {
	return []Document{
		{Index: "fills", ID: "a", Body: map[string]string{"x": "1"}},
		{Index: "fills", ID: "b", Body: map[string]string{"x": "2"}},
	}
}

func TestBulkSinkWritesNDJSON(t *testing.T) {
	es, sink := newFakeES(t, http.StatusOK, `{"took":1,"errors":false,"items":[{"index":{"_id":"a","status":201}},{"index":{"_id":"b","status":201}}]}`)

	require.NoError(t, sink.Index(context.Background(), docs()))

	require.Len(t, es.bodies, 1)
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(es.bodies[0]))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Equal(t, []string{
		`{"index":{"_index":"fills","_id":"a"}}`,
		`{"x":"1"}`,
		`{"index":{"_index":"fills","_id":"b"}}`,
		`{"x":"2"}`,
	}, lines)
}

func TestBulkSinkSurfacesFirstFailingItem(t *testing.T) {
	_, sink := newFakeES(t, http.StatusOK, `{"took":1,"errors":true,"items":[
		{"index":{"_id":"a","status":201}},
		{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [amount]"}}}
	]}`)

	err := sink.Index(context.Background(), docs())
	require.Error(t, err)
	assert.Equal(t, "first failing item b: mapper_parsing_exception: failed to parse field [amount]", err.Error())
}

func TestBulkSinkRequestError(t *testing.T) {
	_, sink := newFakeES(t, http.StatusBadRequest, `{"error":"bad"}`)
	err := sink.Index(context.Background(), docs())
	assert.ErrorContains(t, err, "400")
}

func TestBulkSinkSkipsEmptyBatch(t *testing.T) {
	es, sink := newFakeES(t, http.StatusOK, `{}`)
	require.NoError(t, sink.Index(context.Background(), nil))
	assert.Empty(t, es.bodies)
}

type recordingSink struct {
	docs []Document
	err  error
}

func (s *recordingSink) Index(_ context.Context, docs []Document) error {
	s.docs = append(s.docs, docs...)
	return s.err
}

func storedFill(t *testing.T, store *memory.Store) model.Fill {
	t.Helper()
	id := uuid.New()
	fill := model.Fill{
		ID:              id,
		EventID:         id,
		Type:            model.FillTypeLimitOrderFilled,
		ProtocolVersion: 4,
		Maker:           "0x1111111111111111111111111111111111111111",
		Taker:           "0x2222222222222222222222222222222222222222",
		Status:          model.FillStatusSuccessful,
		Date:            time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		TransactionHash: "0xaaa",
		Assets: []model.Asset{
			{Actor: model.ActorMaker, TokenAddress: "0x6b175474e89094c44da98b954eedeac495271d0f", TokenType: model.TokenTypeERC20, Amount: decimal.NewFromInt(2000)},
			{Actor: model.ActorTaker, TokenAddress: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", TokenType: model.TokenTypeERC20, Amount: decimal.NewFromInt(1)},
		},
	}
	require.NoError(t, store.CreateFills(context.Background(), []model.Fill{fill}))
	return fill
}

func fillJob(t *testing.T, name string, id uuid.UUID) queue.Job {
	t.Helper()
	data, err := json.Marshal(model.FillJob{FillID: id})
	require.NoError(t, err)
	return queue.Job{Name: name, Data: data}
}

func TestIndexerBuildsDocumentsPerJob(t *testing.T) {
	store := memory.NewStore()
	fill := storedFill(t, store)
	id := fill.ID.String()

	tests := []struct {
		name string
		ids  []string
	}{
		{model.JobIndexFill, []string{id}},
		{model.JobIndexTradedTokens, []string{
			id + "-MAKER-0x6b175474e89094c44da98b954eedeac495271d0f",
			id + "-TAKER-0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		}},
		{model.JobIndexTraderFills, []string{id + "-MAKER", id + "-TAKER"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			ix := NewIndexer(store, sink, DefaultIndices(), nil)
			require.NoError(t, ix.Handle(context.Background(), fillJob(t, tt.name, fill.ID)))

			var got []string
			for _, doc := range sink.docs {
				got = append(got, doc.ID)
			}
			assert.Equal(t, tt.ids, got)
		})
	}
}

func TestIndexerErrors(t *testing.T) {
	store := memory.NewStore()
	fill := storedFill(t, store)
	sink := &recordingSink{}
	ix := NewIndexer(store, sink, DefaultIndices(), nil)

	err := ix.Handle(context.Background(), fillJob(t, "index-everything", fill.ID))
	assert.ErrorIs(t, err, queue.ErrUnknownJob)

	err = ix.Handle(context.Background(), fillJob(t, model.JobIndexFill, uuid.New()))
	require.Error(t, err)
	assert.False(t, model.IsTerminal(err))

	sink.err = assert.AnError
	err = ix.Handle(context.Background(), fillJob(t, model.JobIndexFill, fill.ID))
	assert.ErrorIs(t, err, assert.AnError)
}
