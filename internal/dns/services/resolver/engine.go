// Package resolver holds the resolution engine shared by the local resolver
// and the authoritative responder. The engine is transport-agnostic: it takes
// one inbound payload and returns the datagrams to send.
package resolver

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/common/utils"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
)

// DefaultStaticTTL is the TTL reported for zone records, and cached for
// upstream answers that carry none.
const DefaultStaticTTL = 60

var (
	errStoreRequired      = errors.New("record store is required")
	errCodecRequired      = errors.New("codec is required")
	errCorrelatorRequired = errors.New("correlator is required when forwarding upstream")
)

// Options wires an Engine. Leaving Upstream nil builds an authoritative
// responder: it never forwards and answers misses with the not-found
// sentinel.
type Options struct {
	Store     RecordStore
	Codec     wire.Codec
	Upstream  net.Addr
	Pending   Correlator
	StaticTTL uint32

	// Optional collaborators.
	Replies ReplyTracker
	Journal Journal
	Table   io.Writer
	Zones   []string
	Clock   clock.Clock
	Logger  log.Logger
}

// Engine decides, per datagram, whether to answer from the store, forward
// upstream, or relay an upstream answer back to its requester.
type Engine struct {
	store     RecordStore
	codec     wire.Codec
	upstream  net.Addr
	pending   Correlator
	staticTTL uint32
	replies   ReplyTracker
	journal   Journal
	table     io.Writer
	zones     []string
	clock     clock.Clock
	logger    log.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errStoreRequired
	}
	if opts.Codec == nil {
		return nil, errCodecRequired
	}
	if opts.Upstream != nil && opts.Pending == nil {
		return nil, errCorrelatorRequired
	}
	if opts.StaticTTL == 0 {
		opts.StaticTTL = DefaultStaticTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	zones := make([]string, len(opts.Zones))
	for i, z := range opts.Zones {
		zones[i] = utils.CanonicalDNSName(z)
	}
	return &Engine{
		store:     opts.Store,
		codec:     opts.Codec,
		upstream:  opts.Upstream,
		pending:   opts.Pending,
		staticTTL: opts.StaticTTL,
		replies:   opts.Replies,
		journal:   opts.Journal,
		table:     opts.Table,
		zones:     zones,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}, nil
}

// Authoritative reports whether the engine answers only from its store.
func (e *Engine) Authoritative() bool {
	return e.upstream == nil
}

// HandlePacket decodes payload and dispatches it. Undecodable payloads are
// logged with their failure kind and dropped.
func (e *Engine) HandlePacket(ctx context.Context, payload []byte, from net.Addr) []domain.Datagram {
	msg, err := e.codec.Decode(payload)
	if err != nil {
		e.logger.Debug(map[string]any{
			"from":  addrString(from),
			"kind":  wire.KindOf(err),
			"error": err,
		}, "Dropping undecodable datagram")
		return nil
	}

	switch msg.Kind {
	case domain.KindQuery:
		return e.handleQuery(msg.Query, from)
	case domain.KindResponse:
		return e.handleResponse(msg.Response, from)
	default:
		return nil
	}
}

func (e *Engine) handleQuery(q domain.Query, from net.Addr) []domain.Datagram {
	fields := map[string]any{
		"from": addrString(from),
		"txid": q.TxID,
		"name": q.Name,
		"type": q.Type.String(),
	}

	if rr, ok := e.store.Get(q.Name, q.Type); ok {
		ttl, dynamic := rr.TTL()
		if !dynamic {
			ttl = e.staticTTL
		}
		fields["static"] = !dynamic
		e.logger.Debug(fields, "Answering from store")
		return e.answer(from, domain.NewAnswer(q.TxID, q.Name, q.Type, ttl, rr.Result))
	}

	if e.Authoritative() {
		if len(e.zones) > 0 && !utils.InZones(q.Name, e.zones) {
			fields["apex"] = utils.GetApexDomain(q.Name)
			e.logger.Debug(fields, "Query outside served zones")
		}
		return e.answer(from, domain.NewNegativeAnswer(q))
	}

	id, err := e.pending.Allocate(domain.PendingRequest{
		ClientAddr: from,
		ClientTxID: q.TxID,
		Name:       q.Name,
		Type:       q.Type,
	})
	if err != nil {
		fields["error"] = err
		e.logger.Error(fields, "Could not allocate upstream transaction id")
		return nil
	}

	payload, err := e.codec.EncodeQuery(domain.Query{TxID: id, Name: q.Name, Type: q.Type})
	if err != nil {
		e.pending.Resolve(id)
		fields["error"] = err
		e.logger.Error(fields, "Failed to encode upstream query")
		return nil
	}

	fields["upstream_txid"] = id
	e.logger.Debug(fields, "Forwarding query upstream")
	return []domain.Datagram{{Payload: payload, Addr: e.upstream}}
}

func (e *Engine) handleResponse(r domain.Response, from net.Addr) []domain.Datagram {
	fields := map[string]any{
		"from": addrString(from),
		"txid": r.TxID,
		"name": r.Name,
	}

	if e.Authoritative() {
		e.logger.Debug(fields, "Dropping response sent to authoritative responder")
		return nil
	}

	req, ok := e.pending.Resolve(r.TxID)
	if !ok {
		if e.replies != nil && e.replies.Consumed(r.TxID) {
			fields["result"] = r.Result
			e.logger.Warn(fields, "Reply for already answered transaction, possible spoofing race")
		} else {
			e.logger.Debug(fields, "Dropping reply with unknown transaction id")
		}
		return nil
	}
	if e.replies != nil {
		e.replies.MarkConsumed(r.TxID)
	}

	if !utils.SameName(r.Name, req.Name) || r.Type != req.Type {
		fields["question_name"] = req.Name
		fields["question_type"] = req.Type.String()
		e.logger.Warn(fields, "Upstream answer does not match the forwarded question")
	}

	ttl := r.TTLOr(e.staticTTL)
	cached := false
	if !r.IsNegative() && ttl > 0 {
		if err := e.store.Refresh(req.Name, req.Type, r.Result, ttl); err != nil {
			fields["error"] = err
			e.logger.Warn(fields, "Failed to cache upstream answer")
		} else {
			cached = true
		}
	}

	e.record(domain.JournalEntry{
		UpstreamTxID: r.TxID,
		ClientTxID:   req.ClientTxID,
		Source:       addrString(from),
		Name:         req.Name,
		Type:         req.Type,
		Result:       r.Result,
		TTL:          ttl,
		Cached:       cached,
		At:           e.clock.Now(),
	})

	e.logger.Debug(map[string]any{
		"upstream_txid": r.TxID,
		"client_txid":   req.ClientTxID,
		"name":          req.Name,
		"result":        r.Result,
		"cached":        cached,
	}, "Relaying upstream answer")
	return e.answer(req.ClientAddr, domain.NewAnswer(req.ClientTxID, req.Name, req.Type, ttl, r.Result))
}

func (e *Engine) answer(to net.Addr, r domain.Response) []domain.Datagram {
	payload, err := e.codec.EncodeResponse(r)
	if err != nil {
		e.logger.Error(map[string]any{"txid": r.TxID, "error": err}, "Failed to encode response")
		return nil
	}
	e.renderTable()
	return []domain.Datagram{{Payload: payload, Addr: to}}
}

func (e *Engine) renderTable() {
	if e.table == nil {
		return
	}
	if err := e.store.Render(e.table); err != nil {
		e.logger.Warn(map[string]any{"error": err}, "Failed to render record table")
	}
}

func (e *Engine) record(entry domain.JournalEntry) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Record(entry); err != nil {
		e.logger.Warn(map[string]any{"error": err, "name": entry.Name}, "Failed to journal answer")
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
