package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/panel-extractor/internal/classify"
	"github.com/joseph-ayodele/panel-extractor/internal/export"
	"github.com/joseph-ayodele/panel-extractor/internal/ingest"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/server"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Classify one photograph without extracting or storing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		img, err := ingest.NewFSIngestor(logger).ReadImage(args[0])
		if err != nil {
			return err
		}
		c, err := classify.New(e.reg, e.inv, logger).Classify(ctx, img)
		if err != nil {
			return err
		}

		out := map[string]any{"image": img.Name, "no_match": c.NoMatch, "raw": c.Raw}
		if !c.NoMatch {
			d, _ := e.reg.Get(c.LayoutID)
			out["layout_id"] = d.ID
			out["layout"] = d.Name
			out["relation"] = d.Relation.Table
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <image>...",
	Short: "Run photographs through the full pipeline and print each result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		comps, err := server.BuildPipeline(cfg, e.reg, e.store, e.inv, logger)
		if err != nil {
			return err
		}
		rejected := 0
		for _, path := range args {
			res := comps.Pipeline.RunPath(ctx, path)
			if res.Rejected() {
				rejected++
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		}
		if rejected > 0 {
			return fmt.Errorf("%d of %d images rejected", rejected, len(args))
		}
		return nil
	},
}

var batchFlags struct {
	dir         string
	out         string
	ledgerDir   string
	concurrency int
	force       bool
	includeDots bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every image under a directory and export the stored readings",
	Long: `Walks --dir, runs each image through the pipeline with up to --concurrency images
in flight, and writes an XLSX workbook with one sheet per layout to --out.

Images whose hash the ledger already records as persisted are skipped unless --force
is given. Without --ledger the ledger lives in memory for this run only.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.dir, "dir", "", "directory to process (required)")
	f.StringVar(&batchFlags.out, "out", "", "output XLSX path (defaults to panels.xlsx next to --dir)")
	f.StringVar(&batchFlags.ledgerDir, "ledger", "", "ledger directory (defaults to LEDGER_DIR)")
	f.IntVar(&batchFlags.concurrency, "concurrency", 2, "images processed in parallel")
	f.BoolVar(&batchFlags.force, "force", false, "reprocess images the ledger has already persisted")
	f.BoolVar(&batchFlags.includeDots, "include-hidden", false, "do not skip hidden files and directories")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if batchFlags.out == "" {
		batchFlags.out = filepath.Join(filepath.Dir(filepath.Clean(batchFlags.dir)), "panels.xlsx")
	}
	ledgerDir := batchFlags.ledgerDir
	if ledgerDir == "" {
		ledgerDir = cfg.Ingest.LedgerDir
	}

	e, err := openEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	comps, err := server.BuildPipeline(cfg, e.reg, e.store, e.inv, logger)
	if err != nil {
		return err
	}
	ledger, err := ingest.OpenLedger(ledgerDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("batch.ledger_close_failed", "error", err)
		}
	}()

	ingestor := ingest.NewFSIngestor(logger)
	ingestor.Ledger = ledger
	ingestor.Force = batchFlags.force
	ingestor.Concurrency = batchFlags.concurrency

	results, stats, err := ingestor.IngestDirectory(ctx, batchFlags.dir, !batchFlags.includeDots,
		func(ctx context.Context, img llm.Image) ingest.Entry {
			res := comps.Pipeline.Run(ctx, img)
			return ingest.Entry{
				Outcome:   res.Outcome,
				RunID:     res.RunID,
				Relation:  res.Relation,
				Persisted: res.Persisted,
				Complete:  res.Complete(),
			}
		})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("batch.file_failed", "path", r.Path, "error", r.Err)
		}
	}

	data, err := export.NewService(comps.Records, logger).ExportXLSX(ctx, e.reg, 0)
	if err != nil {
		return err
	}
	if err := os.WriteFile(batchFlags.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", batchFlags.out, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Batch complete\n")
	fmt.Fprintf(w, "- Images matched: %d\n", stats.Matched)
	fmt.Fprintf(w, "- Persisted: %d\n", stats.Persisted)
	fmt.Fprintf(w, "- Rejected: %d\n", stats.Rejected)
	fmt.Fprintf(w, "- Incomplete (will retry): %d\n", stats.Incomplete)
	fmt.Fprintf(w, "- Skipped (already stored): %d\n", stats.Deduplicated)
	fmt.Fprintf(w, "- Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "- Output: %s\n", batchFlags.out)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
