package postgres

import (
	"context"

	"fillScope/internal/model"
)

func (s *Store) KnownAddresses(ctx context.Context, addresses []string) (map[string]bool, error) {
	out := make(map[string]bool, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT address FROM addresses WHERE address = ANY($1)`, normalizeAll(addresses))
	if err != nil {
		return nil, mapError("known addresses", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, mapError("scan address", err)
		}
		out[address] = true
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate addresses", err)
	}
	return out, nil
}

func (s *Store) SaveAddressMeta(ctx context.Context, meta model.AddressMeta) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO addresses (address, type, resolved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET type = EXCLUDED.type, resolved_at = EXCLUDED.resolved_at
	`, model.NormalizeAddress(meta.Address), string(meta.Type), meta.ResolvedAt)
	return mapError("save address", err)
}
