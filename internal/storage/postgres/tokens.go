package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"fillScope/internal/model"
	"fillScope/internal/storage"
)

func (s *Store) KnownTokens(ctx context.Context, addresses []string) (model.KnownTokens, error) {
	known := make(model.KnownTokens)
	if len(addresses) == 0 {
		return known, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT address FROM tokens WHERE address = ANY($1)`, normalizeAll(addresses))
	if err != nil {
		return nil, mapError("known tokens", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, mapError("scan token", err)
		}
		known[address] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate tokens", err)
	}
	return known, nil
}

// InsertMissingTokens creates unresolved tokens for unknown refs and returns every ref whose
// token is still unresolved, whether this call created it or not.
func (s *Store) InsertMissingTokens(ctx context.Context, refs []model.TokenRef) ([]model.TokenRef, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	addresses := make([]string, 0, len(refs))
	for _, ref := range refs {
		address := model.NormalizeAddress(ref.Address)
		addresses = append(addresses, address)
		batch.Queue(`
			INSERT INTO tokens (address, type, resolved, created_at, updated_at)
			VALUES ($1, $2, false, now(), now())
			ON CONFLICT (address) DO NOTHING
		`, address, string(ref.Type))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, mapError("insert token", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT address, type FROM tokens
		WHERE address = ANY($1) AND NOT resolved
		ORDER BY address
	`, addresses)
	if err != nil {
		return nil, mapError("unresolved tokens", err)
	}
	defer rows.Close()

	var unresolved []model.TokenRef
	for rows.Next() {
		var ref model.TokenRef
		var tokenType string
		if err := rows.Scan(&ref.Address, &tokenType); err != nil {
			return nil, mapError("scan token", err)
		}
		ref.Type = model.TokenType(tokenType)
		unresolved = append(unresolved, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate tokens", err)
	}
	return unresolved, nil
}

func (s *Store) UpdateTokenMeta(ctx context.Context, address string, meta model.TokenMeta) error {
	var decimals *int16
	if meta.Decimals != nil {
		d := int16(*meta.Decimals)
		decimals = &d
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tokens SET name = $2, symbol = $3, decimals = $4, resolved = true, updated_at = now()
		WHERE address = $1
	`, model.NormalizeAddress(address), meta.Name, meta.Symbol, decimals)
	if err != nil {
		return mapError("update token", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func normalizeAll(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, model.NormalizeAddress(address))
	}
	return out
}
