package fill

import (
	"context"
	"fmt"

	"fillScope/internal/model"
	"fillScope/internal/normalize"
)

// legacyProcessor handles v1 LogFill and v2/v3 Fill events through the version normalizers.
type legacyProcessor struct {
	*base
	normalizer *normalize.Normalizer
}

func (p *legacyProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	return p.processSingle(ctx, event, p.build)
}

func (p *legacyProcessor) build(event model.Event, tx model.Transaction) (model.Fill, error) {
	normalized, err := p.normalizer.Normalize(event, nil)
	if err != nil {
		return model.Fill{}, err
	}

	fill := newFill(event, tx, model.FillTypeFill)
	fill.Assets = normalized.Assets
	fill.Fees = normalized.Fees

	if event.ProtocolVersion == 1 {
		var data model.LogFillData
		if err := event.DecodeData(&data); err != nil {
			return model.Fill{}, err
		}
		fill.Maker = model.NormalizeAddress(data.Maker)
		fill.Taker = model.NormalizeAddress(data.Taker)
		fill.FeeRecipient = model.NormalizeAddress(data.FeeRecipient)
		fill.OrderHash = data.OrderHash
		return fill, nil
	}

	var data model.FillData
	if err := event.DecodeData(&data); err != nil {
		return model.Fill{}, err
	}
	protocolFee, err := model.ParseOptionalAmount(data.ProtocolFeePaid)
	if err != nil {
		return model.Fill{}, fmt.Errorf("protocol fee: %w", err)
	}
	fill.Maker = model.NormalizeAddress(data.MakerAddress)
	fill.Taker = model.NormalizeAddress(data.TakerAddress)
	fill.FeeRecipient = model.NormalizeAddress(data.FeeRecipientAddress)
	fill.SenderAddress = model.NormalizeAddress(data.SenderAddress)
	fill.OrderHash = data.OrderHash
	fill.ProtocolFee = protocolFee
	return fill, nil
}
