package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/seafront-labs/aquamon/internal/observability/metrics"
	"github.com/seafront-labs/aquamon/internal/query"
)

const (
	exportFormatXLSX = "xlsx"
	exportFormatCSV  = "csv"

	exportSheetName     = "readings"
	exportTimestampHead = "Timestamp (UTC)"
)

// handleExport streams the full-resolution dataset over a window as a
// spreadsheet. Missing samples become empty cells, never interpolated
// values.
//
// Query parameters:
//   - start, end: RFC 3339 timestamps or unix seconds (required)
//   - format: "xlsx" (default) or "csv"
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = exportFormatXLSX
	}
	if format != exportFormatXLSX && format != exportFormatCSV {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		writeBadRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}

	start, end, err := parseWindowParams(r)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		writeBadRequest(w, err.Error())
		return
	}

	dataset, err := s.service.Export(r.Context(), query.ExportRequest{Start: start, End: end})
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		writeQueryError(w, err)
		return
	}

	filename := fmt.Sprintf("aquamon-%s-%s.%s",
		start.UTC().Format("20060102T150405Z"),
		end.UTC().Format("20060102T150405Z"),
		format,
	)

	switch format {
	case exportFormatCSV:
		err = writeCSV(w, filename, dataset)
	default:
		err = writeXLSX(w, filename, dataset)
	}
	if err != nil {
		// Headers are already sent; all we can do is log via the request log.
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		s.logger.Error("export write failed", "format", format, "error", err)
		return
	}

	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))
}

// writeXLSX renders the dataset as a single-sheet workbook.
func writeXLSX(w http.ResponseWriter, filename string, ds *query.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheetName)

	header := make([]interface{}, 0, len(ds.Columns)+1)
	header = append(header, exportTimestampHead)
	for _, col := range ds.Columns {
		header = append(header, columnTitle(col.Label, col.Unit))
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range ds.Rows {
		cells := make([]interface{}, 0, len(row.Values)+1)
		cells = append(cells, row.Timestamp.UTC().Format(time.RFC3339))
		for _, v := range row.Values {
			if v == nil {
				cells = append(cells, nil)
			} else {
				cells = append(cells, *v)
			}
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheetName, anchor, &cells); err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, err := f.WriteTo(w)
	return err
}

// writeCSV renders the dataset as RFC 4180 CSV.
func writeCSV(w http.ResponseWriter, filename string, ds *query.Dataset) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)

	header := make([]string, 0, len(ds.Columns)+1)
	header = append(header, exportTimestampHead)
	for _, col := range ds.Columns {
		header = append(header, columnTitle(col.Label, col.Unit))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(ds.Columns)+1)
	for _, row := range ds.Rows {
		record[0] = row.Timestamp.UTC().Format(time.RFC3339)
		for i, v := range row.Values {
			if v == nil {
				record[i+1] = ""
			} else {
				record[i+1] = strconv.FormatFloat(*v, 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// columnTitle builds a spreadsheet header like "Temperature (°C)".
func columnTitle(label, unit string) string {
	if unit == "" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, unit)
}
