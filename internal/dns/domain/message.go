package domain

import "fmt"

// NotFoundResult is the result text of a negative answer.
const NotFoundResult = "Record not found"

// Wire flags distinguishing queries from responses.
const (
	FlagQuery    = "0000"
	FlagResponse = "0001"
)

// MessageKind tells a decoded Message's payload apart.
type MessageKind uint8

const (
	KindQuery MessageKind = iota + 1
	KindResponse
)

func (k MessageKind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Query asks for the records of one name and type.
type Query struct {
	TxID uint32
	Name string
	Type RRType
}

// Response answers a Query. TTL is nil when the sender omitted it.
type Response struct {
	TxID   uint32
	Name   string
	Type   RRType
	TTL    *uint32
	Result string
}

// IsNegative reports whether the response carries the not-found sentinel.
func (r Response) IsNegative() bool {
	return r.Result == NotFoundResult
}

// TTLOr returns the response TTL, or def when it was absent.
func (r Response) TTLOr(def uint32) uint32 {
	if r.TTL == nil {
		return def
	}
	return *r.TTL
}

// Message is one decoded datagram: exactly one of Query or Response is set,
// selected by Kind.
type Message struct {
	Kind     MessageKind
	Query    Query
	Response Response
}

// NewAnswer builds a Response with an explicit TTL.
func NewAnswer(txid uint32, name string, rrtype RRType, ttl uint32, result string) Response {
	return Response{TxID: txid, Name: name, Type: rrtype, TTL: &ttl, Result: result}
}

// NewNegativeAnswer builds the not-found Response for a query.
func NewNegativeAnswer(q Query) Response {
	return NewAnswer(q.TxID, q.Name, q.Type, 0, NotFoundResult)
}
