package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the on-chain log variant an Event was decoded from.
type EventType string

const (
	EventTypeLogFill               EventType = "LogFill"
	EventTypeFill                  EventType = "Fill"
	EventTypeLimitOrderFilled      EventType = "LimitOrderFilled"
	EventTypeRfqOrderFilled        EventType = "RfqOrderFilled"
	EventTypeLiquidityProviderSwap EventType = "LiquidityProviderSwap"
	EventTypeSushiswapSwap         EventType = "SushiswapSwap"
	EventTypeUniswapV2Swap         EventType = "UniswapV2Swap"
	EventTypeUniswapV3Swap         EventType = "UniswapV3Swap"
	EventTypeTransformedERC20      EventType = "TransformedERC20"
	EventTypeBridgeFill            EventType = "BridgeFill"
	EventTypeERC20BridgeTransfer   EventType = "ERC20BridgeTransfer"
)

// AllEventTypes returns every known event type.
func AllEventTypes() []EventType {
	return append(FillEventTypes(), BridgeEventTypes()...)
}

// FillEventTypes returns the event types that produce Fills directly.
func FillEventTypes() []EventType {
	return []EventType{
		EventTypeLogFill,
		EventTypeFill,
		EventTypeLimitOrderFilled,
		EventTypeRfqOrderFilled,
		EventTypeLiquidityProviderSwap,
		EventTypeSushiswapSwap,
		EventTypeUniswapV2Swap,
		EventTypeUniswapV3Swap,
		EventTypeTransformedERC20,
	}
}

// BridgeEventTypes returns the two bridge sub-event shapes a TransformedERC20 may carry.
func BridgeEventTypes() []EventType {
	return []EventType{EventTypeBridgeFill, EventTypeERC20BridgeTransfer}
}

// ParseEventType validates a stored type tag.
func ParseEventType(value string) (EventType, error) {
	for _, t := range AllEventTypes() {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEventType, value)
}

// Event is one decoded on-chain log entry. It is immutable apart from the scheduler flags.
type Event struct {
	ID                        uuid.UUID       `json:"id"`
	BlockNumber               uint64          `json:"blockNumber"`
	TransactionHash           string          `json:"transactionHash"`
	LogIndex                  uint            `json:"logIndex"`
	Address                   string          `json:"address"`
	ProtocolVersion           int             `json:"protocolVersion"`
	Type                      EventType       `json:"type"`
	Data                      json.RawMessage `json:"data"`
	DateIngested              time.Time       `json:"dateIngested"`
	TransactionFetchScheduled *bool           `json:"transactionFetchScheduled,omitempty"`
	FillCreationScheduled     *bool           `json:"fillCreationScheduled,omitempty"`
}

// DecodeData unmarshals the type-specific payload into v.
func (e Event) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, e.ID)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: decode %s data for event %s: %w", ErrMalformedEvent, e.Type, e.ID, err)
	}
	return nil
}

// ParseEventID parses an event identifier taken from a job payload.
func ParseEventID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: event id %q", ErrMalformedID, value)
	}
	return id, nil
}
