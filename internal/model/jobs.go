package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Queue names.
const (
	QueueFillProcessing        = "fill-processing"
	QueueTransactionProcessing = "transaction-processing"
	QueueTokenProcessing       = "token-processing"
	QueueAddressProcessing     = "address-processing"
	QueueIndexing              = "indexing"
	QueuePricing               = "pricing"
)

// Job names.
const (
	JobCreateFill         = "create-fill"
	JobFetchTransaction   = "fetch-transaction"
	JobFetchTokenMetadata = "fetch-token-metadata"
	JobResolveAddressType = "resolve-address-type"
	JobIndexFill          = "index-fill"
	JobIndexTradedTokens  = "index-traded-tokens"
	JobIndexTraderFills   = "index-trader-fills"
	JobConvertProtocolFee = "convert-protocol-fee"
	JobConvertRelayerFees = "convert-relayer-fees"
)

// CreateFillJob asks the fill pipeline to process one Event.
type CreateFillJob struct {
	EventID string `json:"eventId"`
}

// FetchTransactionJob asks the transaction pipeline to fetch one transaction.
type FetchTransactionJob struct {
	TransactionHash string `json:"transactionHash"`
}

// FetchTokenMetadataJob asks for a token's on-chain metadata.
type FetchTokenMetadataJob struct {
	TokenAddress string    `json:"tokenAddress"`
	TokenType    TokenType `json:"tokenType"`
}

// ResolveAddressTypeJob asks for an address to be classified.
type ResolveAddressTypeJob struct {
	Address string `json:"address"`
}

// FillJob references a persisted Fill.
type FillJob struct {
	FillID uuid.UUID `json:"fillId"`
}

// ConvertProtocolFeeJob carries the protocol fee to be priced.
type ConvertProtocolFeeJob struct {
	FillID      uuid.UUID       `json:"fillId"`
	ProtocolFee decimal.Decimal `json:"protocolFee"`
}

// JobID builds a deterministic job identifier so duplicate publication is a no-op.
func JobID(name, key string) string {
	return name + "-" + key
}
