package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/miekg/dns"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// maxNameLength matches the presentation-format limit enforced by dns.IsDomainName.
const maxNameLength = 255

type envelope struct {
	TxID     *uint32   `json:"txid"`
	Flag     string    `json:"flag"`
	Question *question `json:"question,omitempty"`
	Answer   *answer   `json:"answer,omitempty"`
}

type question struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

type answer struct {
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	TTL    *uint32 `json:"ttl"`
	Result *string `json:"result"`
}

// jsonCodec implements Codec over compact UTF-8 JSON objects.
type jsonCodec struct {
	logger log.Logger
}

// NewJSONCodec creates a Codec for the chain's datagram format.
func NewJSONCodec(logger log.Logger) Codec {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &jsonCodec{logger: logger}
}

// Decode parses one datagram. Unknown JSON fields are ignored.
func (c *jsonCodec) Decode(data []byte) (domain.Message, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		return domain.Message{}, decodeErr(ErrMalformed, "%v", err)
	}
	if dec.More() {
		return domain.Message{}, decodeErr(ErrMalformed, "trailing data after message")
	}
	if env.TxID == nil {
		return domain.Message{}, decodeErr(ErrMissingField, "txid")
	}

	switch env.Flag {
	case domain.FlagQuery:
		q, err := c.decodeQuestion(*env.TxID, env.Question)
		if err != nil {
			return domain.Message{}, err
		}
		return domain.Message{Kind: domain.KindQuery, Query: q}, nil
	case domain.FlagResponse:
		r, err := c.decodeAnswer(*env.TxID, env.Answer)
		if err != nil {
			return domain.Message{}, err
		}
		return domain.Message{Kind: domain.KindResponse, Response: r}, nil
	case "":
		return domain.Message{}, decodeErr(ErrMissingField, "flag")
	default:
		return domain.Message{}, decodeErr(ErrUnknownKind, "flag %q", env.Flag)
	}
}

func (c *jsonCodec) decodeQuestion(txid uint32, q *question) (domain.Query, error) {
	if q == nil {
		return domain.Query{}, decodeErr(ErrMissingField, "question")
	}
	name, err := requireName(q.Name, "question.name")
	if err != nil {
		return domain.Query{}, err
	}
	rrtype, err := requireType(q.Type, "question.type")
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{TxID: txid, Name: name, Type: rrtype}, nil
}

func (c *jsonCodec) decodeAnswer(txid uint32, a *answer) (domain.Response, error) {
	if a == nil {
		return domain.Response{}, decodeErr(ErrMissingField, "answer")
	}
	name, err := requireName(a.Name, "answer.name")
	if err != nil {
		return domain.Response{}, err
	}
	rrtype, err := requireType(a.Type, "answer.type")
	if err != nil {
		return domain.Response{}, err
	}
	if a.Result == nil {
		return domain.Response{}, decodeErr(ErrMissingField, "answer.result")
	}
	return domain.Response{
		TxID:   txid,
		Name:   name,
		Type:   rrtype,
		TTL:    a.TTL,
		Result: *a.Result,
	}, nil
}

func requireName(name *string, field string) (string, error) {
	if name == nil || *name == "" {
		return "", decodeErr(ErrMissingField, "%s", field)
	}
	if len(*name) > maxNameLength {
		return "", decodeErr(ErrInvalidName, "%s longer than %d bytes", field, maxNameLength)
	}
	if _, ok := dns.IsDomainName(*name); !ok {
		return "", decodeErr(ErrInvalidName, "%s %q", field, *name)
	}
	return *name, nil
}

func requireType(t *string, field string) (domain.RRType, error) {
	if t == nil || *t == "" {
		return 0, decodeErr(ErrMissingField, "%s", field)
	}
	rrtype, err := domain.ParseRRType(*t)
	if err != nil {
		return 0, decodeErr(ErrUnsupportedType, "%s %q", field, *t)
	}
	return rrtype, nil
}

// EncodeQuery serializes a query.
func (c *jsonCodec) EncodeQuery(q domain.Query) ([]byte, error) {
	if !q.Type.IsValid() {
		return nil, fmt.Errorf("encode query: %w: %s", domain.ErrUnsupportedRRType, q.Type)
	}
	name, typ := q.Name, q.Type.String()
	txid := q.TxID
	return c.marshal(envelope{
		TxID:     &txid,
		Flag:     domain.FlagQuery,
		Question: &question{Name: &name, Type: &typ},
	})
}

// EncodeResponse serializes a response. A nil TTL is written as null.
func (c *jsonCodec) EncodeResponse(r domain.Response) ([]byte, error) {
	if !r.Type.IsValid() {
		return nil, fmt.Errorf("encode response: %w: %s", domain.ErrUnsupportedRRType, r.Type)
	}
	name, typ, result := r.Name, r.Type.String(), r.Result
	txid := r.TxID
	return c.marshal(envelope{
		TxID:   &txid,
		Flag:   domain.FlagResponse,
		Answer: &answer{Name: &name, Type: &typ, TTL: r.TTL, Result: &result},
	})
}

func (c *jsonCodec) marshal(env envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", env.Flag, err)
	}
	c.logger.Debug(map[string]any{"txid": *env.TxID, "flag": env.Flag, "size": len(data)}, "Encoded message")
	return data, nil
}

var _ Codec = (*jsonCodec)(nil)
