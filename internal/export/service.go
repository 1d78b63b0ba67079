package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

// excel caps sheet names at 31 characters
const maxSheetName = 31

// Service produces XLSX workbooks of stored panel readings.
type Service struct {
	repo   repository.RecordRepository
	logger *slog.Logger
}

func NewService(repo repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportXLSX returns a workbook with one sheet per layout of reg, holding up to limit rows
// each (limit <= 0 means all). The header row is the identity column followed by the
// layout's columns.
func (s *Service) ExportXLSX(ctx context.Context, reg *layout.Registry, limit int) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	total := 0
	for i, d := range reg.All() {
		sheet := SheetName(d)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		rows, err := s.repo.List(ctx, d, limit)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", d.Relation.Table, err)
		}

		headers := append([]string{layout.IdentityColumn}, d.Relation.Columns...)
		for col, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
		for r, row := range rows {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, r+2)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, row.ID)
			for c, fld := range d.Fields {
				write(c+2, cellValue(row.Values[fld.Name]))
			}
		}
		if len(headers) > 1 {
			last, _ := excelize.ColumnNumberToName(len(headers))
			_ = f.SetColWidth(sheet, "B", last, 20)
		}
		total += len(rows)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"sheets", reg.Len(),
		"rows", total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// SheetName is the worksheet title for d.
func SheetName(d *layout.Descriptor) string {
	name := fmt.Sprintf("%d_%s", d.ID, d.Name)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// cellValue renders lists joined with "; " and leaves nulls empty.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, "; ")
	case []float64:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strings.Join(parts, "; ")
	default:
		return v
	}
}
