package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fillScope/internal/model"
)

func (s *Store) FillExists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM fills WHERE event_id = $1)`, eventID.String()).Scan(&exists)
	if err != nil {
		return false, mapError("fill exists", err)
	}
	return exists, nil
}

func (s *Store) ExistingFills(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		ids = append(ids, id.String())
	}

	rows, err := s.pool.Query(ctx, `SELECT event_id::text FROM fills WHERE event_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, mapError("existing fills", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, mapError("scan existing fill", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse fill event id %q: %w", raw, err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate existing fills", err)
	}
	return out, nil
}

// CreateFills inserts fills in one transaction. A uniqueness violation on any row rolls back
// the whole batch and surfaces as storage.ErrDuplicateKey.
func (s *Store) CreateFills(ctx context.Context, fills []model.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError("begin create fills", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, f := range fills {
		assets, err := json.Marshal(f.Assets)
		if err != nil {
			return fmt.Errorf("marshal assets for fill %s: %w", f.ID, err)
		}
		fees, err := json.Marshal(f.Fees)
		if err != nil {
			return fmt.Errorf("marshal fees for fill %s: %w", f.ID, err)
		}
		var protocolFee *string
		if f.ProtocolFee != nil {
			v := f.ProtocolFee.String()
			protocolFee = &v
		}

		batch.Queue(`
			INSERT INTO fills (
				id, event_id, type, protocol_version, maker, taker, fee_recipient, sender_address,
				affiliate_address, order_hash, pool, protocol_fee, assets, fees, status, block_hash,
				block_number, date, quote_date, transaction_hash, log_index
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		`,
			f.ID.String(),
			f.EventID.String(),
			string(f.Type),
			f.ProtocolVersion,
			f.Maker,
			f.Taker,
			f.FeeRecipient,
			f.SenderAddress,
			f.AffiliateAddress,
			f.OrderHash,
			f.Pool,
			protocolFee,
			assets,
			fees,
			string(f.Status),
			f.BlockHash,
			int64(f.BlockNumber),
			f.Date,
			f.QuoteDate,
			f.TransactionHash,
			int(f.LogIndex),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, f := range fills {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return mapError(fmt.Sprintf("insert fill %s", f.ID), err)
		}
	}
	if err := br.Close(); err != nil {
		return mapError("close fill batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("commit fills", err)
	}
	return nil
}

func (s *Store) GetFill(ctx context.Context, id uuid.UUID) (model.Fill, error) {
	var (
		f           model.Fill
		rawID       string
		rawEventID  string
		fillType    string
		status      string
		protocolFee *string
		assets      []byte
		fees        []byte
		blockNumber int64
		logIndex    int
		quoteDate   *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, event_id::text, type, protocol_version, maker, taker, fee_recipient, sender_address,
			affiliate_address, order_hash, pool, protocol_fee::text, assets, fees, status, block_hash,
			block_number, date, quote_date, transaction_hash, log_index
		FROM fills WHERE id = $1
	`, id.String()).Scan(
		&rawID,
		&rawEventID,
		&fillType,
		&f.ProtocolVersion,
		&f.Maker,
		&f.Taker,
		&f.FeeRecipient,
		&f.SenderAddress,
		&f.AffiliateAddress,
		&f.OrderHash,
		&f.Pool,
		&protocolFee,
		&assets,
		&fees,
		&status,
		&f.BlockHash,
		&blockNumber,
		&f.Date,
		&quoteDate,
		&f.TransactionHash,
		&logIndex,
	)
	if err != nil {
		return model.Fill{}, mapError("get fill", err)
	}

	if f.ID, err = uuid.Parse(rawID); err != nil {
		return model.Fill{}, fmt.Errorf("postgres: parse fill id %q: %w", rawID, err)
	}
	if f.EventID, err = uuid.Parse(rawEventID); err != nil {
		return model.Fill{}, fmt.Errorf("postgres: parse fill event id %q: %w", rawEventID, err)
	}
	if protocolFee != nil {
		fee, err := decimal.NewFromString(*protocolFee)
		if err != nil {
			return model.Fill{}, fmt.Errorf("postgres: parse protocol fee %q: %w", *protocolFee, err)
		}
		f.ProtocolFee = &fee
	}
	if err := json.Unmarshal(assets, &f.Assets); err != nil {
		return model.Fill{}, fmt.Errorf("postgres: decode fill assets: %w", err)
	}
	if err := json.Unmarshal(fees, &f.Fees); err != nil {
		return model.Fill{}, fmt.Errorf("postgres: decode fill fees: %w", err)
	}
	f.Type = model.FillType(fillType)
	f.Status = model.FillStatus(status)
	f.BlockNumber = uint64(blockNumber)
	f.LogIndex = uint(logIndex)
	f.QuoteDate = quoteDate
	return f, nil
}
