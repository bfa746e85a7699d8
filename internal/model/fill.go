package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor tags which side of a trade an asset or fee belongs to.
type Actor string

const (
	ActorMaker Actor = "MAKER"
	ActorTaker Actor = "TAKER"
)

// TokenType is the token standard of an asset.
type TokenType string

const (
	TokenTypeERC20   TokenType = "ERC20"
	TokenTypeERC721  TokenType = "ERC721"
	TokenTypeERC1155 TokenType = "ERC1155"
)

// FillStatus tracks the settlement state of a Fill.
type FillStatus string

const (
	FillStatusPending    FillStatus = "PENDING"
	FillStatusSuccessful FillStatus = "SUCCESSFUL"
	FillStatusFailed     FillStatus = "FAILED"
)

// FillType records which event variant produced a Fill.
type FillType string

const (
	FillTypeFill                  FillType = "FILL"
	FillTypeLimitOrderFilled      FillType = "LIMIT_ORDER_FILLED"
	FillTypeRfqOrderFilled        FillType = "RFQ_ORDER_FILLED"
	FillTypeLiquidityProviderSwap FillType = "LIQUIDITY_PROVIDER_SWAP"
	FillTypeSushiswapSwap         FillType = "SUSHISWAP_SWAP"
	FillTypeUniswapV2Swap         FillType = "UNISWAP_V2_SWAP"
	FillTypeUniswapV3Swap         FillType = "UNISWAP_V3_SWAP"
	FillTypeBridgeFill            FillType = "BRIDGE_FILL"
	FillTypeERC20BridgeTransfer   FillType = "ERC20_BRIDGE_TRANSFER"
)

// AssetDescriptor is one decoded asset produced by the asset data codec.
type AssetDescriptor struct {
	TokenAddress  string
	TokenType     TokenType
	Amount        decimal.Decimal
	TokenID       *decimal.Decimal
	BridgeAddress string
	BridgeData    string
}

// Asset is one traded leg of a Fill.
type Asset struct {
	Actor         Actor            `json:"actor"`
	TokenAddress  string           `json:"tokenAddress"`
	TokenType     TokenType        `json:"tokenType"`
	Amount        decimal.Decimal  `json:"amount"`
	TokenID       *decimal.Decimal `json:"tokenId,omitempty"`
	BridgeAddress string           `json:"bridgeAddress,omitempty"`
	BridgeData    string           `json:"bridgeData,omitempty"`
	TokenResolved bool             `json:"tokenResolved"`
}

// FeeAmount holds a fee in token units and, once converted, in USD.
type FeeAmount struct {
	Token decimal.Decimal  `json:"token"`
	USD   *decimal.Decimal `json:"usd,omitempty"`
}

// Fee is a relayer fee paid by one side of a Fill.
type Fee struct {
	TraderType    Actor            `json:"traderType"`
	TokenAddress  string           `json:"tokenAddress"`
	TokenType     TokenType        `json:"tokenType"`
	TokenID       *decimal.Decimal `json:"tokenId,omitempty"`
	Amount        FeeAmount        `json:"amount"`
	TokenResolved bool             `json:"tokenResolved"`
}

// Fill is the canonical record of one executed trade. Its ID always equals EventID.
type Fill struct {
	ID               uuid.UUID        `json:"id"`
	EventID          uuid.UUID        `json:"eventId"`
	Type             FillType         `json:"type"`
	ProtocolVersion  int              `json:"protocolVersion"`
	Maker            string           `json:"maker"`
	Taker            string           `json:"taker"`
	FeeRecipient     string           `json:"feeRecipient,omitempty"`
	SenderAddress    string           `json:"senderAddress,omitempty"`
	AffiliateAddress string           `json:"affiliateAddress,omitempty"`
	OrderHash        string           `json:"orderHash,omitempty"`
	Pool             string           `json:"pool,omitempty"`
	ProtocolFee      *decimal.Decimal `json:"protocolFee,omitempty"`
	Assets           []Asset          `json:"assets"`
	Fees             []Fee            `json:"fees"`
	Status           FillStatus       `json:"status"`
	BlockHash        string           `json:"blockHash"`
	BlockNumber      uint64           `json:"blockNumber"`
	Date             time.Time        `json:"date"`
	QuoteDate        *time.Time       `json:"quoteDate,omitempty"`
	TransactionHash  string           `json:"transactionHash"`
	LogIndex         uint             `json:"logIndex"`
}

// Addresses returns the distinct non-empty party addresses referenced by the Fill.
func (f Fill) Addresses() []string {
	return distinct(f.Maker, f.Taker, f.FeeRecipient, f.SenderAddress, f.AffiliateAddress)
}

// TokenRefs returns the distinct tokens referenced by the Fill's assets and fees.
func (f Fill) TokenRefs() []TokenRef {
	seen := make(map[string]struct{}, len(f.Assets)+len(f.Fees))
	refs := make([]TokenRef, 0, len(f.Assets)+len(f.Fees))
	add := func(address string, tokenType TokenType) {
		if address == "" {
			return
		}
		if _, ok := seen[address]; ok {
			return
		}
		seen[address] = struct{}{}
		refs = append(refs, TokenRef{Address: address, Type: tokenType})
	}
	for _, asset := range f.Assets {
		add(asset.TokenAddress, asset.TokenType)
	}
	for _, fee := range f.Fees {
		add(fee.TokenAddress, fee.TokenType)
	}
	return refs
}

func distinct(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
