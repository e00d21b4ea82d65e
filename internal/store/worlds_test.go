package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestBatchedInsertWorlds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "form_id", "master", "created_at", "updated_at"}).
		AddRow(int32(1), int32(0x3c), "Skyrim.esm", now, now).
		AddRow(int32(2), int32(0x1a26f), "Skyrim.esm", now, now)

	mock.ExpectQuery("INSERT INTO worlds").
		WithArgs([]int32{0x3c, 0x1a26f}, []string{"Skyrim.esm", "Skyrim.esm"}).
		WillReturnRows(rows)

	s := New(mock)
	saved, err := s.BatchedInsertWorlds(context.Background(), []UnsavedWorld{
		{FormID: 0x3c, Master: "Skyrim.esm"},
		{FormID: 0x1a26f, Master: "Skyrim.esm"},
	})
	if err != nil {
		t.Fatalf("BatchedInsertWorlds() error = %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("got %d worlds, want 2", len(saved))
	}
	if saved[0].ID != 1 || saved[1].ID != 2 {
		t.Errorf("unexpected ids: %+v", saved)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBatchedInsertPluginWorlds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "plugin_id", "world_id", "editor_id", "created_at", "updated_at"}).
		AddRow(int32(1), int32(10), int32(20), "Tamriel", now, now)

	mock.ExpectQuery("INSERT INTO plugin_worlds").
		WithArgs([]int32{10}, []int32{20}, []string{"Tamriel"}).
		WillReturnRows(rows)

	s := New(mock)
	saved, err := s.BatchedInsertPluginWorlds(context.Background(), []UnsavedPluginWorld{
		{PluginID: 10, WorldID: 20, EditorID: "Tamriel"},
	})
	if err != nil {
		t.Fatalf("BatchedInsertPluginWorlds() error = %v", err)
	}
	if len(saved) != 1 || saved[0].EditorID != "Tamriel" {
		t.Errorf("unexpected result: %+v", saved)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBatchedInsertWorldsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	s := New(mock)
	saved, err := s.BatchedInsertWorlds(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchedInsertWorlds() error = %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("got %d worlds, want 0", len(saved))
	}
}
