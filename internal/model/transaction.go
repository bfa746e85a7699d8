package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the enclosing chain transaction of one or more Events.
type Transaction struct {
	Hash             string          `json:"hash"`
	BlockHash        string          `json:"blockHash"`
	BlockNumber      uint64          `json:"blockNumber"`
	Index            uint            `json:"index"`
	Date             time.Time       `json:"date"`
	From             string          `json:"from"`
	To               string          `json:"to"`
	Nonce            uint64          `json:"nonce"`
	GasLimit         uint64          `json:"gasLimit"`
	GasUsed          uint64          `json:"gasUsed"`
	GasPrice         decimal.Decimal `json:"gasPrice"`
	Value            decimal.Decimal `json:"value"`
	QuoteDate        *time.Time      `json:"quoteDate,omitempty"`
	AffiliateAddress string          `json:"affiliateAddress,omitempty"`
}

// Block is the subset of a block header needed to date a Fill.
type Block struct {
	Hash   string    `json:"hash"`
	Number uint64    `json:"number"`
	Date   time.Time `json:"date"`
}
