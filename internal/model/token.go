package model

import "time"

// TokenRef identifies a token contract referenced by an asset or fee.
type TokenRef struct {
	Address string    `json:"address"`
	Type    TokenType `json:"type"`
}

// Token is a known token contract. Resolved flips to true once metadata is fetched.
type Token struct {
	Address   string    `json:"address"`
	Type      TokenType `json:"type"`
	Name      string    `json:"name,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Decimals  *uint8    `json:"decimals,omitempty"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenMeta captures metadata read from a token contract.
type TokenMeta struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *uint8 `json:"decimals,omitempty"`
}

// KnownTokens is a read-only snapshot of token addresses already present in the store.
type KnownTokens map[string]struct{}

// NewKnownTokens builds a snapshot from addresses.
func NewKnownTokens(addresses ...string) KnownTokens {
	known := make(KnownTokens, len(addresses))
	for _, address := range addresses {
		known[NormalizeAddress(address)] = struct{}{}
	}
	return known
}

// Has reports whether address is in the snapshot. A nil snapshot knows nothing.
func (k KnownTokens) Has(address string) bool {
	if k == nil {
		return false
	}
	_, ok := k[NormalizeAddress(address)]
	return ok
}

// AddressType classifies an address seen on a Fill.
type AddressType string

const (
	AddressTypeContract AddressType = "CONTRACT"
	AddressTypeWallet   AddressType = "WALLET"
)

// AddressMeta is the resolved type of an address.
type AddressMeta struct {
	Address    string      `json:"address"`
	Type       AddressType `json:"type"`
	ResolvedAt time.Time   `json:"resolvedAt"`
}
