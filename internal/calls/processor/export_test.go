package processor

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"dispatch-server/internal/store"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func TestExportCalls(t *testing.T) {
	ctx := context.Background()

	withSummary := store.Call{
		ID:         uuid.New(),
		DriverName: "Mike",
		LoadNumber: "L-100",
		Channel:    store.CallChannelPhone,
		Status:     store.CallStatusCompleted,
		StartedAt:  sql.NullTime{Time: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), Valid: true},
	}
	withoutSummary := store.Call{
		ID:         uuid.New(),
		DriverName: "Sara",
		LoadNumber: "L-200",
		Channel:    store.CallChannelWeb,
		Status:     store.CallStatusFailed,
	}

	fake := &fakeStore{
		listCalls: func(context.Context, store.ListCallsParams) ([]store.Call, error) {
			return []store.Call{withSummary, withoutSummary}, nil
		},
		getSummaryByCallID: func(_ context.Context, callID uuid.UUID) (store.StructuredSummary, error) {
			if callID != withSummary.ID {
				return store.StructuredSummary{}, store.ErrNotFound
			}
			return store.StructuredSummary{
				CallID:       callID,
				ScenarioType: store.ScenarioCheckin,
				DriverStatus: sql.NullString{String: "Driving", Valid: true},
			}, nil
		},
	}

	workbook, err := newTestProcessor(fake, &fakeVendor{}, nil).ExportCalls(ctx)
	if err != nil {
		t.Fatalf("ExportCalls returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		t.Fatalf("export output is not a readable workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("failed to read export rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][0] != "Call ID" || rows[0][1] != "Driver" {
		t.Errorf("unexpected header row: %v", rows[0][:2])
	}
	if rows[1][1] != "Mike" || rows[1][10] != "Driving" {
		t.Errorf("unexpected first data row: %v", rows[1])
	}
	if rows[2][1] != "Sara" {
		t.Errorf("unexpected second data row: %v", rows[2])
	}
}
