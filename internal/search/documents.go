package search

import (
	"time"

	"github.com/shopspring/decimal"

	"fillScope/internal/model"
)

// Indices names the Elasticsearch indices documents are written to.
type Indices struct {
	Fills        string
	TradedTokens string
	TraderFills  string
}

// DefaultIndices returns the index names used when none are configured.
func DefaultIndices() Indices {
	return Indices{
		Fills:        "fills",
		TradedTokens: "traded_tokens",
		TraderFills:  "trader_fills",
	}
}

type fillDoc struct {
	ID               string           `json:"id"`
	Type             model.FillType   `json:"type"`
	ProtocolVersion  int              `json:"protocolVersion"`
	Date             time.Time        `json:"date"`
	TransactionHash  string           `json:"transactionHash"`
	BlockNumber      uint64           `json:"blockNumber"`
	Maker            string           `json:"maker"`
	Taker            string           `json:"taker"`
	FeeRecipient     string           `json:"feeRecipient,omitempty"`
	AffiliateAddress string           `json:"affiliateAddress,omitempty"`
	ProtocolFee      *decimal.Decimal `json:"protocolFee,omitempty"`
	Assets           []model.Asset    `json:"assets"`
	Fees             []model.Fee      `json:"fees"`
	Status           model.FillStatus `json:"status"`
}

type tradedTokenDoc struct {
	FillID       string          `json:"fillId"`
	Date         time.Time       `json:"date"`
	FillType     model.FillType  `json:"fillType"`
	Actor        model.Actor     `json:"actor"`
	TokenAddress string          `json:"tokenAddress"`
	TokenType    model.TokenType `json:"tokenType"`
	Amount       decimal.Decimal `json:"amount"`
}

type traderFillDoc struct {
	FillID   string         `json:"fillId"`
	Date     time.Time      `json:"date"`
	FillType model.FillType `json:"fillType"`
	Address  string         `json:"address"`
	Role     model.Actor    `json:"role"`
}

// FillDocuments returns the single fill document.
func (ix Indices) FillDocuments(fill model.Fill) []Document {
	id := fill.ID.String()
	return []Document{{
		Index: ix.Fills,
		ID:    id,
		Body: fillDoc{
			ID:               id,
			Type:             fill.Type,
			ProtocolVersion:  fill.ProtocolVersion,
			Date:             fill.Date,
			TransactionHash:  fill.TransactionHash,
			BlockNumber:      fill.BlockNumber,
			Maker:            fill.Maker,
			Taker:            fill.Taker,
			FeeRecipient:     fill.FeeRecipient,
			AffiliateAddress: fill.AffiliateAddress,
			ProtocolFee:      fill.ProtocolFee,
			Assets:           fill.Assets,
			Fees:             fill.Fees,
			Status:           fill.Status,
		},
	}}
}

// TradedTokenDocuments returns one document per asset.
func (ix Indices) TradedTokenDocuments(fill model.Fill) []Document {
	id := fill.ID.String()
	docs := make([]Document, 0, len(fill.Assets))
	for _, asset := range fill.Assets {
		docs = append(docs, Document{
			Index: ix.TradedTokens,
			ID:    id + "-" + string(asset.Actor) + "-" + asset.TokenAddress,
			Body: tradedTokenDoc{
				FillID:       id,
				Date:         fill.Date,
				FillType:     fill.Type,
				Actor:        asset.Actor,
				TokenAddress: asset.TokenAddress,
				TokenType:    asset.TokenType,
				Amount:       asset.Amount,
			},
		})
	}
	return docs
}

// TraderFillDocuments returns one document for the maker and one for the taker.
func (ix Indices) TraderFillDocuments(fill model.Fill) []Document {
	id := fill.ID.String()
	var docs []Document
	for _, trader := range []struct {
		address string
		role    model.Actor
	}{
		{fill.Maker, model.ActorMaker},
		{fill.Taker, model.ActorTaker},
	} {
		if trader.address == "" {
			continue
		}
		docs = append(docs, Document{
			Index: ix.TraderFills,
			ID:    id + "-" + string(trader.role),
			Body: traderFillDoc{
				FillID:   id,
				Date:     fill.Date,
				FillType: fill.Type,
				Address:  trader.address,
				Role:     trader.role,
			},
		})
	}
	return docs
}
