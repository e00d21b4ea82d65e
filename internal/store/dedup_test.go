package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeduplicateInteriorCellsPrefersBaseGameAndRepoints(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	groupRows := pgxmock.NewRows([]string{"form_id", "master", "array_agg", "array_agg"}).
		AddRow(int32(0x10), "X.esm", []int32{7, 9}, []bool{true, false})

	mock.ExpectQuery("FROM cells").
		WillReturnRows(groupRows)
	mock.ExpectExec("DELETE FROM plugin_cells").
		WithArgs([]int32{7, 9}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE plugin_cells").
		WithArgs(int32(7), []int32{7, 9}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("DELETE FROM cells").
		WithArgs(int32(7), []int32{7, 9}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	emptyRows := pgxmock.NewRows([]string{"form_id", "master", "array_agg", "array_agg"})
	mock.ExpectQuery("FROM cells").
		WillReturnRows(emptyRows)

	s := New(mock)
	if err := s.DeduplicateInteriorCells(context.Background(), discardLogger()); err != nil {
		t.Fatalf("DeduplicateInteriorCells() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeduplicateInteriorCellsStopsWhenNoDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	emptyRows := pgxmock.NewRows([]string{"form_id", "master", "array_agg", "array_agg"})
	mock.ExpectQuery("FROM cells").WillReturnRows(emptyRows)

	s := New(mock)
	if err := s.DeduplicateInteriorCells(context.Background(), discardLogger()); err != nil {
		t.Fatalf("DeduplicateInteriorCells() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
