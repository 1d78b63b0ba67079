package ingest

import (
	"context"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// FileResult is the per-file outcome of a directory ingest.
type FileResult struct {
	Path         string            `json:"path"`
	SHA256       string            `json:"sha256,omitempty"`
	Outcome      constants.Outcome `json:"outcome,omitempty"`
	RunID        string            `json:"run_id,omitempty"`
	Complete     bool              `json:"complete,omitempty"`
	Deduplicated bool              `json:"deduplicated,omitempty"`
	Err          string            `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Persisted    uint32 `json:"persisted"`
	Rejected     uint32 `json:"rejected"`
	Incomplete   uint32 `json:"incomplete"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Handler processes one image and reports how it ended. Path, SHA256 and At of the
// returned entry are filled in by the caller.
type Handler func(ctx context.Context, img llm.Image) Entry

// Ingestor is the behavior the binaries depend on.
type Ingestor interface {
	// ReadImage loads one photograph.
	ReadImage(path string) (llm.Image, error)
	// IngestDirectory hands every matching image under root to handle.
	IngestDirectory(ctx context.Context, root string, skipHidden bool, handle Handler) ([]FileResult, DirStats, error)
}
