package domain

import "time"

// JournalEntry describes one upstream answer the resolver accepted.
type JournalEntry struct {
	Seq          uint64    `json:"-"`
	UpstreamTxID uint32    `json:"upstream_txid"`
	ClientTxID   uint32    `json:"client_txid"`
	Source       string    `json:"source"`
	Name         string    `json:"name"`
	Type         RRType    `json:"type"`
	Result       string    `json:"result"`
	TTL          uint32    `json:"ttl"`
	Cached       bool      `json:"cached"`
	At           time.Time `json:"at"`
}
