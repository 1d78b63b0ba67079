package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// FSIngestor reads photographs from the local filesystem.
type FSIngestor struct {
	// MaxBytes caps a single image; zero means constants.MaxImageMBDefault.
	MaxBytes int64
	// Ledger, when set, skips images already persisted and records every outcome.
	Ledger *Ledger
	// Force processes images even when the ledger has seen them.
	Force bool
	// Concurrency bounds parallel handlers in IngestDirectory; zero means 1.
	Concurrency int

	logger *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{logger: logger}
}

func (i *FSIngestor) maxBytes() int64 {
	if i.MaxBytes > 0 {
		return i.MaxBytes
	}
	return constants.MaxImageMBDefault << 20
}

// ReadImage loads path, checks its extension and size, and fingerprints it.
// CapturedAt is the file's modification time.
func (i *FSIngestor) ReadImage(path string) (llm.Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("ingest.abs_path_failed", "path", path, "error", err)
		return llm.Image{}, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("ingest.unsupported_extension", "path", abs, "ext", ext)
		return llm.Image{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	info, err := os.Stat(abs)
	if err != nil {
		i.logger.Error("ingest.stat_failed", "path", abs, "error", err)
		return llm.Image{}, err
	}
	if info.IsDir() {
		return llm.Image{}, fmt.Errorf("%s is a directory", abs)
	}
	if info.Size() == 0 {
		return llm.Image{}, fmt.Errorf("%s is empty", abs)
	}
	if info.Size() > i.maxBytes() {
		i.logger.Warn("ingest.too_large", "path", abs, "bytes", info.Size(), "max_bytes", i.maxBytes())
		return llm.Image{}, fmt.Errorf("%s is %d bytes, limit is %d", abs, info.Size(), i.maxBytes())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("ingest.read_failed", "path", abs, "error", err)
		return llm.Image{}, err
	}
	sum := sha256.Sum256(data)

	return llm.Image{
		Name:       abs,
		MIME:       constants.MIMEForExt(ext),
		Data:       data,
		SHA256:     hex.EncodeToString(sum[:]),
		CapturedAt: info.ModTime().UTC(),
	}, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls handle for
// each image. A failure on one file never stops the walk.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool, handle Handler) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var (
		paths   []string
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowedPath(path) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.directory.start", "root", root, "matched", len(paths))

	limit := i.Concurrency
	if limit <= 0 {
		limit = 1
	}
	out := make([]FileResult, len(paths))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for n, path := range paths {
		g.Go(func() error {
			r := i.ingestOne(ctx, path, handle)
			out[n] = r

			mu.Lock()
			defer mu.Unlock()
			switch {
			case r.Err != "":
				stats.Failed++
			case r.Deduplicated:
				stats.Deduplicated++
			case r.Complete:
				stats.Persisted++
			case r.Outcome == constants.OutcomePersisted:
				stats.Incomplete++
			default:
				stats.Rejected++
			}
			return nil
		})
	}
	_ = g.Wait()
	results = append(results, out...)

	i.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"persisted", stats.Persisted,
		"rejected", stats.Rejected,
		"incomplete", stats.Incomplete,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func (i *FSIngestor) ingestOne(ctx context.Context, path string, handle Handler) FileResult {
	if err := ctx.Err(); err != nil {
		return FileResult{Path: path, Err: err.Error()}
	}
	img, err := i.ReadImage(path)
	if err != nil {
		return FileResult{Path: path, Err: err.Error()}
	}
	res := FileResult{Path: path, SHA256: img.SHA256}

	if i.Ledger != nil && !i.Force {
		prev, seen, err := i.Ledger.Seen(img.SHA256)
		if err != nil {
			i.logger.Warn("ingest.ledger.lookup_failed", "path", path, "error", err)
		} else if seen && prev.Complete {
			i.logger.Info("ingest.skip_duplicate", "path", path, "sha256", img.SHA256, "run_id", prev.RunID)
			res.Deduplicated = true
			res.Outcome = prev.Outcome
			res.RunID = prev.RunID
			return res
		}
	}

	entry := handle(ctx, img)
	entry.Path = path
	entry.SHA256 = img.SHA256
	entry.At = time.Now().UTC()
	res.Outcome = entry.Outcome
	res.RunID = entry.RunID
	res.Complete = entry.Complete

	if i.Ledger != nil {
		if err := i.Ledger.Mark(entry); err != nil {
			i.logger.Warn("ingest.ledger.mark_failed", "path", path, "error", err)
		}
	}
	return res
}
