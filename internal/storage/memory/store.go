// Package memory is an in-process implementation of storage.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fillScope/internal/model"
	"fillScope/internal/storage"
)

// Store keeps every document in mutex-guarded maps and enforces the same uniqueness
// constraints as the postgres schema.
type Store struct {
	mu           sync.RWMutex
	events       map[uuid.UUID]model.Event
	eventKeys    map[string]uuid.UUID
	transactions map[string]model.Transaction
	fills        map[uuid.UUID]model.Fill
	fillEvents   map[uuid.UUID]uuid.UUID
	tokens       map[string]model.Token
	addresses    map[string]model.AddressMeta

	// FillWrites counts successful CreateFills calls.
	FillWrites int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		events:       make(map[uuid.UUID]model.Event),
		eventKeys:    make(map[string]uuid.UUID),
		transactions: make(map[string]model.Transaction),
		fills:        make(map[uuid.UUID]model.Fill),
		fillEvents:   make(map[uuid.UUID]uuid.UUID),
		tokens:       make(map[string]model.Token),
		addresses:    make(map[string]model.AddressMeta),
	}
}

func eventKey(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s:%d", txHash, logIndex)
}

// PutEventBatch inserts events, silently skipping natural-key duplicates.
func (s *Store) PutEventBatch(_ context.Context, events []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, event := range events {
		key := eventKey(event.TransactionHash, event.LogIndex)
		if _, ok := s.eventKeys[key]; ok {
			continue
		}
		if _, ok := s.events[event.ID]; ok {
			continue
		}
		s.events[event.ID] = event
		s.eventKeys[key] = event.ID
		inserted++
	}
	return inserted, nil
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return model.Event{}, storage.ErrNotFound
	}
	return event, nil
}

func (s *Store) EventsByTransaction(_ context.Context, txHash string, types ...model.EventType) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, event := range s.events {
		if event.TransactionHash != txHash {
			continue
		}
		if len(types) > 0 && !containsType(types, event.Type) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogIndex < out[j].LogIndex })
	return out, nil
}

func (s *Store) UnscheduledEvents(_ context.Context, flag storage.SchedulerFlag, types []model.EventType, limit int) ([]model.Event, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("unknown scheduler flag %q", flag)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, event := range s.events {
		if flagValue(event, flag) != nil {
			continue
		}
		if !containsType(types, event.Type) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkScheduled(_ context.Context, flag storage.SchedulerFlag, ids []uuid.UUID) error {
	if !flag.Valid() {
		return fmt.Errorf("unknown scheduler flag %q", flag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scheduled := true
	for _, id := range ids {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		switch flag {
		case storage.FlagTransactionFetch:
			event.TransactionFetchScheduled = &scheduled
		case storage.FlagFillCreation:
			event.FillCreationScheduled = &scheduled
		}
		s.events[id] = event
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, hash string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[hash]
	if !ok {
		return model.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *Store) SaveTransaction(_ context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.Hash] = tx
	return nil
}

func (s *Store) FillExists(_ context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.fillEvents[eventID]
	return ok, nil
}

func (s *Store) ExistingFills(_ context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]bool, len(eventIDs))
	for _, id := range eventIDs {
		if _, ok := s.fillEvents[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// CreateFills inserts all fills or none of them.
func (s *Store) CreateFills(_ context.Context, fills []model.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[uuid.UUID]struct{}, len(fills))
	for _, fill := range fills {
		if _, ok := s.fills[fill.ID]; ok {
			return fmt.Errorf("fill %s: %w", fill.ID, storage.ErrDuplicateKey)
		}
		if _, ok := s.fillEvents[fill.EventID]; ok {
			return fmt.Errorf("fill for event %s: %w", fill.EventID, storage.ErrDuplicateKey)
		}
		if _, ok := batch[fill.EventID]; ok {
			return fmt.Errorf("fill for event %s: %w", fill.EventID, storage.ErrDuplicateKey)
		}
		batch[fill.EventID] = struct{}{}
	}

	for _, fill := range fills {
		s.fills[fill.ID] = fill
		s.fillEvents[fill.EventID] = fill.ID
	}
	s.FillWrites++
	return nil
}

func (s *Store) GetFill(_ context.Context, id uuid.UUID) (model.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fill, ok := s.fills[id]
	if !ok {
		return model.Fill{}, storage.ErrNotFound
	}
	return fill, nil
}

// Fills returns every stored fill ordered by log index.
func (s *Store) Fills() []model.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Fill, 0, len(s.fills))
	for _, fill := range s.fills {
		out = append(out, fill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogIndex < out[j].LogIndex })
	return out
}

func (s *Store) KnownTokens(_ context.Context, addresses []string) (model.KnownTokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := make(model.KnownTokens)
	for _, address := range addresses {
		if _, ok := s.tokens[model.NormalizeAddress(address)]; ok {
			known[model.NormalizeAddress(address)] = struct{}{}
		}
	}
	return known, nil
}

func (s *Store) InsertMissingTokens(_ context.Context, refs []model.TokenRef) ([]model.TokenRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unresolved []model.TokenRef
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		address := model.NormalizeAddress(ref.Address)
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}

		token, ok := s.tokens[address]
		if !ok {
			token = model.Token{Address: address, Type: ref.Type, CreatedAt: time.Now().UTC()}
			s.tokens[address] = token
		}
		if !token.Resolved {
			unresolved = append(unresolved, model.TokenRef{Address: address, Type: token.Type})
		}
	}
	return unresolved, nil
}

func (s *Store) UpdateTokenMeta(_ context.Context, address string, meta model.TokenMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	address = model.NormalizeAddress(address)
	token, ok := s.tokens[address]
	if !ok {
		return storage.ErrNotFound
	}
	token.Name = meta.Name
	token.Symbol = meta.Symbol
	token.Decimals = meta.Decimals
	token.Resolved = true
	s.tokens[address] = token
	return nil
}

// Token returns a stored token.
func (s *Store) Token(address string) (model.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[model.NormalizeAddress(address)]
	return token, ok
}

func (s *Store) KnownAddresses(_ context.Context, addresses []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		if _, ok := s.addresses[model.NormalizeAddress(address)]; ok {
			out[model.NormalizeAddress(address)] = true
		}
	}
	return out, nil
}

func (s *Store) SaveAddressMeta(_ context.Context, meta model.AddressMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta.Address = model.NormalizeAddress(meta.Address)
	s.addresses[meta.Address] = meta
	return nil
}

// AddressMeta returns a stored address classification.
func (s *Store) AddressMeta(address string) (model.AddressMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.addresses[model.NormalizeAddress(address)]
	return meta, ok
}

func flagValue(event model.Event, flag storage.SchedulerFlag) *bool {
	if flag == storage.FlagTransactionFetch {
		return event.TransactionFetchScheduled
	}
	return event.FillCreationScheduled
}

func containsType(types []model.EventType, t model.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

var _ storage.Store = (*Store)(nil)
