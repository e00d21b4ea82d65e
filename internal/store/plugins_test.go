package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestInsertPlugin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "file_id", "mod_id", "hash", "name", "file_name", "file_path", "size", "version",
		"author", "description", "masters", "created_at", "updated_at",
	}).AddRow(
		int32(1), int32(9), int32(3), int64(123), "Main File", "main.esp", "Data/main.esp",
		int64(2048), 1.7, nil, nil, []string{"Skyrim.esm"}, now, now,
	)

	mock.ExpectQuery("INSERT INTO plugins").WillReturnRows(rows)

	s := New(mock)
	p, err := s.InsertPlugin(context.Background(), UnsavedPlugin{
		FileID: 9, ModID: 3, Hash: 123, Name: "Main File", FileName: "main.esp",
		FilePath: "Data/main.esp", Size: 2048, Version: 1.7, Masters: []string{"Skyrim.esm"},
	})
	if err != nil {
		t.Fatalf("InsertPlugin() error = %v", err)
	}
	if p.ID != 1 || p.Hash != 123 || len(p.Masters) != 1 {
		t.Errorf("unexpected result: %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
