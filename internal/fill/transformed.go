package fill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fillScope/internal/model"
)

// transformedProcessor turns the bridge sub-events of a TransformedERC20 transaction into
// one Fill each, persisted as a single batch.
type transformedProcessor struct{ *base }

func (p *transformedProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	logger := p.logger.With(zap.String("event_id", event.ID.String()), zap.String("event_type", string(event.Type)))

	var transform model.TransformedERC20Data
	if err := event.DecodeData(&transform); err != nil {
		return Result{}, err
	}

	related, err := p.store.EventsByTransaction(ctx, event.TransactionHash,
		model.EventTypeTransformedERC20, model.EventTypeBridgeFill, model.EventTypeERC20BridgeTransfer)
	if err != nil {
		return Result{}, fmt.Errorf("load events of transaction %s: %w", event.TransactionHash, err)
	}

	var transforms, bridgeFills, transfers []model.Event
	for _, e := range related {
		switch e.Type {
		case model.EventTypeTransformedERC20:
			transforms = append(transforms, e)
		case model.EventTypeBridgeFill:
			bridgeFills = append(bridgeFills, e)
		case model.EventTypeERC20BridgeTransfer:
			transfers = append(transfers, e)
		}
	}

	if len(transforms) > 1 {
		return Result{}, fmt.Errorf("%w: %d TransformedERC20 events in transaction %s",
			model.ErrAmbiguousTransform, len(transforms), event.TransactionHash)
	}
	if len(bridgeFills) > 0 && len(transfers) > 0 {
		logger.Warn("transaction has both BridgeFill and ERC20BridgeTransfer events, deferring",
			zap.Int("bridge_fills", len(bridgeFills)),
			zap.Int("bridge_transfers", len(transfers)),
		)
		return deferred(AmbiguousBridgeDelay), nil
	}
	subEvents := bridgeFills
	if len(transfers) > 0 {
		subEvents = transfers
	}
	if len(subEvents) == 0 {
		logger.Info("no bridge events in transaction, nothing to do")
		return Result{Status: StatusNoop}, nil
	}

	tx, ok, err := p.awaitTransaction(ctx, event)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return deferred(TransactionWaitDelay), nil
	}

	subEvents = dedupeByData(subEvents)
	ids := make([]uuid.UUID, 0, len(subEvents))
	for _, e := range subEvents {
		ids = append(ids, e.ID)
	}
	existing, err := p.store.ExistingFills(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("check existing fills: %w", err)
	}

	fills := make([]model.Fill, 0, len(subEvents))
	for _, e := range subEvents {
		if existing[e.ID] {
			logger.Warn("fill already exists", zap.String("sub_event_id", e.ID.String()))
			continue
		}
		fill, err := buildBridgeFill(e, tx, transform)
		if err != nil {
			return Result{}, fmt.Errorf("build fill for event %s: %w", e.ID, err)
		}
		fills = append(fills, fill)
	}
	if len(fills) == 0 {
		return Result{Status: StatusExists}, nil
	}

	if err := p.prepare(ctx, tx, fills); err != nil {
		return Result{}, err
	}
	return p.persist(ctx, logger, fills)
}

// dedupeByData drops sub-events whose payload repeats an earlier one.
func dedupeByData(events []model.Event) []model.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		var buf bytes.Buffer
		key := string(e.Data)
		if err := json.Compact(&buf, e.Data); err == nil {
			key = buf.String()
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// buildBridgeFill maps one bridge sub-event. The bridge is the maker and pays out the output
// token; the transform's taker is the taker.
func buildBridgeFill(sub model.Event, tx model.Transaction, transform model.TransformedERC20Data) (model.Fill, error) {
	var (
		fillType   model.FillType
		maker      string
		bridgeData string
		legs       model.ERC20BridgeTransferData
	)
	switch sub.Type {
	case model.EventTypeBridgeFill:
		var data model.BridgeFillData
		if err := sub.DecodeData(&data); err != nil {
			return model.Fill{}, err
		}
		fillType = model.FillTypeBridgeFill
		maker = sub.Address
		bridgeData = data.Source
		legs = model.ERC20BridgeTransferData{
			InputToken:        data.InputToken,
			OutputToken:       data.OutputToken,
			InputTokenAmount:  data.InputTokenAmount,
			OutputTokenAmount: data.OutputTokenAmount,
		}
	case model.EventTypeERC20BridgeTransfer:
		if err := sub.DecodeData(&legs); err != nil {
			return model.Fill{}, err
		}
		fillType = model.FillTypeERC20BridgeTransfer
		maker = legs.From
	default:
		return model.Fill{}, fmt.Errorf("%w: %s is not a bridge event", model.ErrUnsupportedEventType, sub.Type)
	}

	assets, err := twoSidedAssets(legs.OutputToken, legs.OutputTokenAmount, legs.InputToken, legs.InputTokenAmount, maker)
	if err != nil {
		return model.Fill{}, err
	}
	assets[0].BridgeData = bridgeData

	fill := newFill(sub, tx, fillType)
	fill.Maker = model.NormalizeAddress(maker)
	fill.Taker = model.NormalizeAddress(transform.Taker)
	fill.Assets = assets
	return fill, nil
}
