package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/haukened/rr-chain/internal/dns/config"
	"github.com/haukened/rr-chain/internal/dns/repos/journal"
)

var errNoJournal = errors.New("journal_path is not configured")

// DumpJournal writes every entry of the journal at path to out.
func DumpJournal(path string, out io.Writer) (err error) {
	store, err := journal.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	entries, err := store.Entries()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	return journal.WriteEntries(out, entries)
}

// RunJournalDump loads the resolver configuration and dumps its journal.
// The resolver must be stopped first; the journal file is locked while it
// runs.
func RunJournalDump(_ context.Context, out io.Writer) error {
	cfg, err := config.LoadResolver()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := setup("rr-journal", cfg.Env, cfg.LogLevel, cfg.SentryDSN); err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return errNoJournal
	}
	return DumpJournal(cfg.JournalPath, out)
}
