package processor

import (
	"context"
	"database/sql"
	"dispatch-server/internal/store"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportBatchLimit = 1000

var exportHeaders = []string{
	"Call ID", "Driver", "Load", "Channel", "Status", "Started At", "Ended At",
	"Duration (s)", "Scenario", "Call Outcome", "Driver Status", "Location",
	"ETA", "Delay Reason", "Emergency Type", "Partial",
}

// ExportCalls renders all calls and their summaries as an XLSX workbook
func (p *CallProcessor) ExportCalls(ctx context.Context) ([]byte, error) {
	calls, err := p.store.ListCalls(ctx, store.ListCallsParams{Limit: exportBatchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list calls for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write export header: %w", err)
		}
	}

	for row, call := range calls {
		var summary *store.StructuredSummary
		s, err := p.store.GetStructuredSummaryByCallID(ctx, call.ID)
		if err == nil {
			summary = &s
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to get summary for export: %w", err)
		}

		values := exportRow(call, summary)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write export row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render export workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(call store.Call, summary *store.StructuredSummary) []interface{} {
	values := []interface{}{
		call.ID.String(),
		call.DriverName,
		call.LoadNumber,
		call.Channel,
		call.Status,
		nullTimeString(call.StartedAt),
		nullTimeString(call.EndedAt),
	}
	if call.DurationSeconds.Valid {
		values = append(values, int(call.DurationSeconds.Int32))
	} else {
		values = append(values, "")
	}

	if summary == nil {
		return append(values, "", "", "", "", "", "", "", "")
	}
	return append(values,
		summary.ScenarioType,
		summary.CallOutcome.String,
		summary.DriverStatus.String,
		summary.CurrentLocation.String,
		summary.ETA.String,
		summary.DelayReason.String,
		summary.EmergencyType.String,
		summary.Partial,
	)
}

func nullTimeString(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format("2006-01-02 15:04:05")
}
