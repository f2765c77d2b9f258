package protocol

import "errors"

var (
	ErrEmptyResponse     = errors.New("protocol: empty response")
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
	ErrMessageTooLarge   = errors.New("protocol: message too large")
	ErrUnknownMethod     = errors.New("protocol: unknown method")
	ErrResultType        = errors.New("protocol: unexpected result type")
)
