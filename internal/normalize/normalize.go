// Package normalize extracts assets and fees from legacy exchange events by protocol version.
package normalize

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"fillScope/internal/model"
)

// ZRXTokenAddress is the token v1 relayer fees are paid in.
const ZRXTokenAddress = "0xe41d2489571d322189246dafa5ebde1f4699f498"

// AssetDecoder decodes encoded asset data.
type AssetDecoder interface {
	Decode(payload string, totalAmount *big.Int) ([]model.AssetDescriptor, error)
}

// Result is the normalized asset and fee view of one event.
type Result struct {
	Assets []model.Asset
	Fees   []model.Fee
}

// Normalizer dispatches on protocol version.
type Normalizer struct {
	codec AssetDecoder
}

// New builds a Normalizer over codec.
func New(codec AssetDecoder) *Normalizer {
	return &Normalizer{codec: codec}
}

// Normalize produces the assets and fees of event. known is consulted read-only to mark
// which tokens already exist.
func (n *Normalizer) Normalize(event model.Event, known model.KnownTokens) (Result, error) {
	switch event.ProtocolVersion {
	case 1:
		return n.normalizeV1(event, known)
	case 2:
		return n.normalizeV2(event, known)
	case 3:
		return n.normalizeV3(event, known)
	default:
		return Result{}, fmt.Errorf("%w: %d", model.ErrUnsupportedProtocol, event.ProtocolVersion)
	}
}

func (n *Normalizer) normalizeV1(event model.Event, known model.KnownTokens) (Result, error) {
	var data model.LogFillData
	if err := event.DecodeData(&data); err != nil {
		return Result{}, err
	}

	makerAmount, err := model.ParseAmount(data.FilledMakerTokenAmount)
	if err != nil {
		return Result{}, fmt.Errorf("filled maker amount: %w", err)
	}
	takerAmount, err := model.ParseAmount(data.FilledTakerTokenAmount)
	if err != nil {
		return Result{}, fmt.Errorf("filled taker amount: %w", err)
	}

	makerToken := model.NormalizeAddress(data.MakerToken)
	takerToken := model.NormalizeAddress(data.TakerToken)
	result := Result{
		Assets: []model.Asset{
			erc20Asset(model.ActorMaker, makerToken, makerAmount, known),
			erc20Asset(model.ActorTaker, takerToken, takerAmount, known),
		},
		Fees: []model.Fee{},
	}

	for _, side := range []struct {
		actor  model.Actor
		amount string
	}{
		{model.ActorMaker, data.PaidMakerFee},
		{model.ActorTaker, data.PaidTakerFee},
	} {
		fee, err := parseFeeAmount(side.amount)
		if err != nil {
			return Result{}, err
		}
		if fee.IsZero() {
			continue
		}
		result.Fees = append(result.Fees, model.Fee{
			TraderType:    side.actor,
			TokenAddress:  ZRXTokenAddress,
			TokenType:     model.TokenTypeERC20,
			Amount:        model.FeeAmount{Token: fee},
			TokenResolved: known.Has(ZRXTokenAddress),
		})
	}

	return result, nil
}

func (n *Normalizer) normalizeV2(event model.Event, known model.KnownTokens) (Result, error) {
	var data model.FillData
	if err := event.DecodeData(&data); err != nil {
		return Result{}, err
	}

	assets, err := n.decodeAssets(data, known)
	if err != nil {
		return Result{}, err
	}
	return Result{Assets: assets, Fees: []model.Fee{}}, nil
}

func (n *Normalizer) normalizeV3(event model.Event, known model.KnownTokens) (Result, error) {
	var data model.FillData
	if err := event.DecodeData(&data); err != nil {
		return Result{}, err
	}

	assets, err := n.decodeAssets(data, known)
	if err != nil {
		return Result{}, err
	}

	makerFees, err := n.decodeFees(model.ActorMaker, data.MakerFeeAssetData, data.MakerFeePaid, known)
	if err != nil {
		return Result{}, err
	}
	takerFees, err := n.decodeFees(model.ActorTaker, data.TakerFeeAssetData, data.TakerFeePaid, known)
	if err != nil {
		return Result{}, err
	}

	return Result{Assets: assets, Fees: append(makerFees, takerFees...)}, nil
}

func (n *Normalizer) decodeAssets(data model.FillData, known model.KnownTokens) ([]model.Asset, error) {
	makerAmount, err := model.ParseAmount(data.MakerAssetFilledAmount)
	if err != nil {
		return nil, fmt.Errorf("maker asset filled amount: %w", err)
	}
	takerAmount, err := model.ParseAmount(data.TakerAssetFilledAmount)
	if err != nil {
		return nil, fmt.Errorf("taker asset filled amount: %w", err)
	}

	makerAssets, err := n.codec.Decode(data.MakerAssetData, makerAmount.BigInt())
	if err != nil {
		return nil, fmt.Errorf("decode maker asset data: %w", err)
	}
	takerAssets, err := n.codec.Decode(data.TakerAssetData, takerAmount.BigInt())
	if err != nil {
		return nil, fmt.Errorf("decode taker asset data: %w", err)
	}

	assets := make([]model.Asset, 0, len(makerAssets)+len(takerAssets))
	for _, d := range makerAssets {
		assets = append(assets, toAsset(model.ActorMaker, d, known))
	}
	for _, d := range takerAssets {
		assets = append(assets, toAsset(model.ActorTaker, d, known))
	}
	return assets, nil
}

func (n *Normalizer) decodeFees(actor model.Actor, assetData, paid string, known model.KnownTokens) ([]model.Fee, error) {
	amount, err := parseFeeAmount(paid)
	if err != nil {
		return nil, err
	}

	descriptors, err := n.codec.Decode(assetData, amount.BigInt())
	if err != nil {
		return nil, fmt.Errorf("%w: %s fee asset data: %v", model.ErrUnsupportedFee, actor, err)
	}

	fees := make([]model.Fee, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Amount.IsZero() {
			continue
		}
		fees = append(fees, model.Fee{
			TraderType:    actor,
			TokenAddress:  d.TokenAddress,
			TokenType:     d.TokenType,
			TokenID:       d.TokenID,
			Amount:        model.FeeAmount{Token: d.Amount},
			TokenResolved: known.Has(d.TokenAddress),
		})
	}
	return fees, nil
}

// parseFeeAmount treats a missing fee as zero.
func parseFeeAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := model.ParseAmount(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee amount: %w", err)
	}
	return amount, nil
}

func toAsset(actor model.Actor, d model.AssetDescriptor, known model.KnownTokens) model.Asset {
	return model.Asset{
		Actor:         actor,
		TokenAddress:  d.TokenAddress,
		TokenType:     d.TokenType,
		Amount:        d.Amount,
		TokenID:       d.TokenID,
		BridgeAddress: d.BridgeAddress,
		BridgeData:    d.BridgeData,
		TokenResolved: known.Has(d.TokenAddress),
	}
}

func erc20Asset(actor model.Actor, token string, amount decimal.Decimal, known model.KnownTokens) model.Asset {
	return model.Asset{
		Actor:         actor,
		TokenAddress:  token,
		TokenType:     model.TokenTypeERC20,
		Amount:        amount,
		TokenResolved: known.Has(token),
	}
}

// MarkResolved annotates assets and fees in place from the known-token snapshot.
func MarkResolved(assets []model.Asset, fees []model.Fee, known model.KnownTokens) {
	for i := range assets {
		assets[i].TokenResolved = known.Has(assets[i].TokenAddress)
	}
	for i := range fees {
		fees[i].TokenResolved = known.Has(fees[i].TokenAddress)
	}
}
