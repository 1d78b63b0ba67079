package ingest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/joseph-ayodele/panel-extractor/constants"
)

// Entry is what the ledger remembers about one processed image. Only complete entries
// make a later sighting of the same image a duplicate.
type Entry struct {
	SHA256    string            `json:"sha256"`
	Path      string            `json:"path"`
	Outcome   constants.Outcome `json:"outcome"`
	RunID     string            `json:"run_id,omitempty"`
	Relation  string            `json:"relation,omitempty"`
	Persisted int               `json:"persisted"`
	Complete  bool              `json:"complete"` // every extracted record was stored
	At        time.Time         `json:"at"`
}

// Ledger records processed image hashes in Badger so re-runs skip images already stored.
type Ledger struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenLedger opens the ledger in dir. An empty dir keeps it in memory.
func OpenLedger(dir string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Clean(dir)).WithValueLogFileSize(1 << 24)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		logger.Error("ingest.ledger.open_failed", "dir", dir, "error", err)
		return nil, err
	}
	logger.Info("ingest.ledger.opened", "dir", dir, "in_memory", dir == "")
	return &Ledger{db: db, logger: logger}, nil
}

func ledgerKey(sha string) []byte {
	return []byte("image:" + sha)
}

// Seen returns the last entry for sha, if any.
func (l *Ledger) Seen(sha string) (Entry, bool, error) {
	var out Entry
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledgerKey(sha))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return out, true, nil
}

// Mark stores e, replacing any earlier entry for the same hash.
func (l *Ledger) Mark(e Entry) error {
	if e.SHA256 == "" {
		return errors.New("ledger entry needs a sha256")
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ledgerKey(e.SHA256), data)
	})
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	if err := l.db.Close(); err != nil {
		l.logger.Warn("ingest.ledger.close_failed", "error", err)
		return err
	}
	return nil
}
