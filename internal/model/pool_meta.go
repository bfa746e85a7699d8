package model

// PoolMeta captures immutable AMM pool metadata used when decoding swaps.
type PoolMeta struct {
	Factory string `json:"factory,omitempty"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
}
