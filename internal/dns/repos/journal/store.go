// Package journal persists every upstream answer the resolver accepts, so a
// poisoning run can be audited after the fact.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

var (
	bucketAnswers = []byte("answers")
	bucketMeta    = []byte("meta")
	keyUpdated    = []byte("updated")
)

// Entry is one accepted upstream answer.
type Entry = domain.JournalEntry

// Store is a bbolt-backed append-only journal.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the journal at path and ensures buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAnswers); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends e under the next sequence number and returns it.
func (s *Store) Record(e Entry) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnswers)
		next, err := b.NextSequence()
		if err != nil {
			return err
		}
		seq = next
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), raw); err != nil {
			return err
		}
		ubuf := make([]byte, 8)
		binary.BigEndian.PutUint64(ubuf, uint64(e.At.Unix()))
		return tx.Bucket(bucketMeta).Put(keyUpdated, ubuf)
	})
	return seq, err
}

// Entries returns every entry in append order.
func (s *Store) Entries() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnswers).ForEach(func(k, v []byte) error {
			e, err := decode(k, v)
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAnswers).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			e, err := decode(k, v)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Stats reports the entry count and the unix time of the last append.
func (s *Store) Stats() (count int, updatedUnix int64) {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketAnswers).Stats().KeyN
		if v := tx.Bucket(bucketMeta).Get(keyUpdated); len(v) == 8 {
			updatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return count, updatedUnix
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func decode(k, v []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return Entry{}, err
	}
	e.Seq = binary.BigEndian.Uint64(k)
	return e, nil
}
