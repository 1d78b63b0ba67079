package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/panel-extractor/internal/export"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

var exportFlags struct {
	out   string
	limit int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored readings to an XLSX workbook, one sheet per layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		svc := export.NewService(repository.NewRecordRepository(e.store, logger), logger)
		data, err := svc.ExportXLSX(ctx, e.reg, exportFlags.limit)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportFlags.out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportFlags.out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", exportFlags.out, len(data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "panels.xlsx", "output XLSX path")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "rows per sheet, 0 for all")
}
