package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var header = []string{"seq", "at", "source", "upstream_txid", "client_txid", "name", "type", "result", "ttl", "cached"}

// WriteEntries renders entries as comma-separated rows under a header line.
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatUint(e.Seq, 10),
			e.At.UTC().Format(time.RFC3339),
			e.Source,
			strconv.FormatUint(uint64(e.UpstreamTxID), 10),
			strconv.FormatUint(uint64(e.ClientTxID), 10),
			e.Name,
			e.Type.String(),
			e.Result,
			strconv.FormatUint(uint64(e.TTL), 10),
			strconv.FormatBool(e.Cached),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
