package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fillScope/internal/model"
	"fillScope/internal/storage"
)

const eventColumns = `id::text, block_number, transaction_hash, log_index, address, protocol_version, type, data,
	date_ingested, transaction_fetch_scheduled, fill_creation_scheduled`

// PutEventBatch inserts events, skipping any whose (transaction_hash, log_index) already exists.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO events (
				id, block_number, transaction_hash, log_index, address, protocol_version, type, data, date_ingested
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (transaction_hash, log_index) DO NOTHING
		`,
			e.ID.String(),
			int64(e.BlockNumber),
			e.TransactionHash,
			int(e.LogIndex),
			e.Address,
			e.ProtocolVersion,
			string(e.Type),
			[]byte(e.Data),
			e.DateIngested,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range events {
		tag, err := br.Exec()
		if err != nil {
			return inserted, mapError("insert event", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (model.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id.String())
	event, err := scanEvent(row)
	if err != nil {
		return model.Event{}, mapError("get event", err)
	}
	return event, nil
}

func (s *Store) EventsByTransaction(ctx context.Context, txHash string, types ...model.EventType) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE transaction_hash = $1`
	args := []any{txHash}
	if len(types) > 0 {
		query += ` AND type = ANY($2)`
		args = append(args, typeNames(types))
	}
	query += ` ORDER BY log_index`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("events by transaction", err)
	}
	return collectEvents(rows)
}

func (s *Store) UnscheduledEvents(ctx context.Context, flag storage.SchedulerFlag, types []model.EventType, limit int) ([]model.Event, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("unknown scheduler flag %q", flag)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM events
		WHERE %s IS NULL AND type = ANY($1)
		ORDER BY block_number, log_index
		LIMIT $2`, eventColumns, string(flag))

	rows, err := s.pool.Query(ctx, query, typeNames(types), limit)
	if err != nil {
		return nil, mapError("unscheduled events", err)
	}
	return collectEvents(rows)
}

func (s *Store) MarkScheduled(ctx context.Context, flag storage.SchedulerFlag, ids []uuid.UUID) error {
	if !flag.Valid() {
		return fmt.Errorf("unknown scheduler flag %q", flag)
	}
	if len(ids) == 0 {
		return nil
	}
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}
	query := fmt.Sprintf(`UPDATE events SET %s = true WHERE id = ANY($1::uuid[])`, string(flag))
	if _, err := s.pool.Exec(ctx, query, values); err != nil {
		return mapError("mark scheduled", err)
	}
	return nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, mapError("scan event", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate events", err)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e           model.Event
		id          string
		blockNumber int64
		logIndex    int
		eventType   string
		data        []byte
	)
	if err := row.Scan(
		&id,
		&blockNumber,
		&e.TransactionHash,
		&logIndex,
		&e.Address,
		&e.ProtocolVersion,
		&eventType,
		&data,
		&e.DateIngested,
		&e.TransactionFetchScheduled,
		&e.FillCreationScheduled,
	); err != nil {
		return model.Event{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse event id %q: %w", id, err)
	}
	e.ID = parsed
	e.BlockNumber = uint64(blockNumber)
	e.LogIndex = uint(logIndex)
	e.Type = model.EventType(eventType)
	e.Data = data
	return e, nil
}

func typeNames(types []model.EventType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
