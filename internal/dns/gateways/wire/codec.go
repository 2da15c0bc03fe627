// Package wire converts between datagram payloads and domain messages.
// Every datagram carries one compact JSON object: a query with flag "0000"
// and a question, or a response with flag "0001" and an answer.
package wire

import (
	"errors"
	"fmt"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

type Codec interface {
	// Decode classifies a payload as a query or a response. Every failure is
	// a *DecodeError so callers can log the reason and drop the datagram.
	Decode(data []byte) (domain.Message, error)

	EncodeQuery(q domain.Query) ([]byte, error)
	EncodeResponse(r domain.Response) ([]byte, error)
}

// Sentinel decode failures, one per DecodeError kind.
var (
	ErrMalformed       = errors.New("malformed payload")
	ErrMissingField    = errors.New("missing required field")
	ErrUnsupportedType = errors.New("unsupported record type")
	ErrUnknownKind     = errors.New("unknown message kind")
	ErrInvalidName     = errors.New("invalid domain name")
)

// DecodeError reports why a payload was rejected.
type DecodeError struct {
	Kind   error  // one of the sentinels above
	Detail string // offending field or parser message
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func decodeErr(kind error, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns a short label for a decode failure, suitable as a log field.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	default:
		return "other"
	}
}
