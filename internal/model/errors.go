package model

import "errors"

// Terminal domain errors. Retrying a job that failed with one of these cannot succeed.
var (
	ErrUnsupportedAsset     = errors.New("unsupported asset")
	ErrUnsupportedFee       = errors.New("unsupported fee")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol version")
	ErrAmbiguousTransform   = errors.New("ambiguous transform")
	ErrMalformedID          = errors.New("malformed identifier")
	ErrUnsupportedEventType = errors.New("unsupported event type")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrMalformedEvent       = errors.New("malformed event data")
)

var terminalErrors = []error{
	ErrUnsupportedAsset,
	ErrUnsupportedFee,
	ErrUnsupportedProtocol,
	ErrAmbiguousTransform,
	ErrMalformedID,
	ErrUnsupportedEventType,
	ErrInvalidAmount,
	ErrMalformedEvent,
}

// IsTerminal reports whether err wraps a non-retryable domain error.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range terminalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
