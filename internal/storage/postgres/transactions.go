package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fillScope/internal/model"
)

func (s *Store) GetTransaction(ctx context.Context, hash string) (model.Transaction, error) {
	var (
		tx          model.Transaction
		blockNumber int64
		index       int
		nonce       int64
		gasLimit    int64
		gasUsed     int64
		gasPrice    string
		value       string
		quoteDate   *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT hash, block_hash, block_number, tx_index, date, from_address, to_address, nonce,
			gas_limit, gas_used, gas_price::text, value::text, quote_date, affiliate_address
		FROM transactions WHERE hash = $1
	`, hash).Scan(
		&tx.Hash,
		&tx.BlockHash,
		&blockNumber,
		&index,
		&tx.Date,
		&tx.From,
		&tx.To,
		&nonce,
		&gasLimit,
		&gasUsed,
		&gasPrice,
		&value,
		&quoteDate,
		&tx.AffiliateAddress,
	)
	if err != nil {
		return model.Transaction{}, mapError("get transaction", err)
	}

	if tx.GasPrice, err = decimal.NewFromString(gasPrice); err != nil {
		return model.Transaction{}, fmt.Errorf("postgres: parse gas price %q: %w", gasPrice, err)
	}
	if tx.Value, err = decimal.NewFromString(value); err != nil {
		return model.Transaction{}, fmt.Errorf("postgres: parse value %q: %w", value, err)
	}
	tx.BlockNumber = uint64(blockNumber)
	tx.Index = uint(index)
	tx.Nonce = uint64(nonce)
	tx.GasLimit = uint64(gasLimit)
	tx.GasUsed = uint64(gasUsed)
	tx.QuoteDate = quoteDate
	return tx, nil
}

// SaveTransaction upserts a transaction by hash.
func (s *Store) SaveTransaction(ctx context.Context, tx model.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			hash, block_hash, block_number, tx_index, date, from_address, to_address, nonce,
			gas_limit, gas_used, gas_price, value, quote_date, affiliate_address, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric, $13, $14, now())
		ON CONFLICT (hash) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			block_number = EXCLUDED.block_number,
			tx_index = EXCLUDED.tx_index,
			date = EXCLUDED.date,
			from_address = EXCLUDED.from_address,
			to_address = EXCLUDED.to_address,
			nonce = EXCLUDED.nonce,
			gas_limit = EXCLUDED.gas_limit,
			gas_used = EXCLUDED.gas_used,
			gas_price = EXCLUDED.gas_price,
			value = EXCLUDED.value,
			quote_date = EXCLUDED.quote_date,
			affiliate_address = EXCLUDED.affiliate_address,
			updated_at = now()
	`,
		tx.Hash,
		tx.BlockHash,
		int64(tx.BlockNumber),
		int(tx.Index),
		tx.Date,
		tx.From,
		tx.To,
		int64(tx.Nonce),
		int64(tx.GasLimit),
		int64(tx.GasUsed),
		tx.GasPrice.String(),
		tx.Value.String(),
		tx.QuoteDate,
		tx.AffiliateAddress,
	)
	return mapError("save transaction", err)
}
