package fill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// Dispatcher routes create-fill jobs to the processor of the Event's type and republishes
// deferred jobs unchanged.
type Dispatcher struct {
	events     storage.EventStore
	publisher  queue.Publisher
	processors map[model.EventType]Processor
	logger     *zap.Logger
}

// NewDispatcher builds a processor for every Fill-producing event type.
func NewDispatcher(deps Deps) *Dispatcher {
	b := newBase(deps)
	processors := make(map[model.EventType]Processor)
	for _, t := range model.FillEventTypes() {
		if p := newProcessor(t, b, deps); p != nil {
			processors[t] = p
		}
	}
	return &Dispatcher{
		events:     deps.Store,
		publisher:  deps.Publisher,
		processors: processors,
		logger:     b.logger,
	}
}

// newProcessor is the exhaustive match over event types. Bridge sub-events return nil:
// they are only reached through their TransformedERC20.
func newProcessor(t model.EventType, b *base, deps Deps) Processor {
	switch t {
	case model.EventTypeLogFill, model.EventTypeFill:
		return &legacyProcessor{base: b, normalizer: deps.Normalizer}
	case model.EventTypeLimitOrderFilled:
		return &limitOrderProcessor{base: b}
	case model.EventTypeRfqOrderFilled:
		return &rfqOrderProcessor{base: b}
	case model.EventTypeLiquidityProviderSwap:
		return &liquidityProviderProcessor{base: b}
	case model.EventTypeSushiswapSwap:
		return &swapProcessor{base: b, fillType: model.FillTypeSushiswapSwap, bridge: SushiswapBridgeAddress}
	case model.EventTypeUniswapV2Swap:
		return &swapProcessor{base: b, fillType: model.FillTypeUniswapV2Swap, bridge: UniswapV2BridgeAddress}
	case model.EventTypeUniswapV3Swap:
		return &swapProcessor{base: b, fillType: model.FillTypeUniswapV3Swap, bridge: UniswapV3BridgeAddress}
	case model.EventTypeTransformedERC20:
		return &transformedProcessor{base: b}
	case model.EventTypeBridgeFill, model.EventTypeERC20BridgeTransfer:
		return nil
	default:
		return nil
	}
}

// Dispatch processes event with the processor registered for its type.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event) (Result, error) {
	p, ok := d.processors[event.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", model.ErrUnsupportedEventType, event.Type)
	}
	return p.Process(ctx, event)
}

// Handle is the create-fill job handler.
func (d *Dispatcher) Handle(ctx context.Context, job queue.Job) error {
	var payload model.CreateFillJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedID, err)
	}
	id, err := model.ParseEventID(payload.EventID)
	if err != nil {
		return err
	}

	event, err := d.events.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("load event %s: %w", id, err)
	}

	result, err := d.Dispatch(ctx, event)
	if err != nil {
		return err
	}

	if result.Status == StatusDeferred {
		d.logger.Info("rescheduling fill creation",
			zap.String("event_id", event.ID.String()),
			zap.Duration("delay", result.Delay),
		)
		if err := d.publisher.Publish(ctx, model.QueueFillProcessing, job.Name, job.Data, queue.Options{Delay: result.Delay}); err != nil {
			return fmt.Errorf("reschedule event %s: %w", event.ID, err)
		}
	}
	return nil
}

var _ queue.Handler = (*Dispatcher)(nil)
