package rrtable

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

var header = []string{"record_number", "name", "type", "result", "ttl", "static"}

// Render writes the table as comma-separated rows under a header line.
// Static records show "None" for ttl and 1 in the static column.
func (t *Table) Render(w io.Writer) error {
	return WriteRecords(w, t.Snapshot())
}

// WriteRecords renders an arbitrary snapshot in the same format as Render.
func WriteRecords(w io.Writer, records []domain.ResourceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rr := range records {
		ttl, static := "None", "1"
		if v, ok := rr.TTL(); ok {
			ttl, static = strconv.FormatUint(uint64(v), 10), "0"
		}
		row := []string{strconv.Itoa(rr.Ordinal), rr.Name, rr.Type.String(), rr.Result, ttl, static}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
