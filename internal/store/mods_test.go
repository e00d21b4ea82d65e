package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestBulkGetLastUpdatedByNexusModIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{"nexus_mod_id", "last_updated_files_at"}).
		AddRow(int32(100), &now).
		AddRow(int32(200), nil)

	mock.ExpectQuery("SELECT nexus_mod_id, last_updated_files_at").
		WithArgs(int32(1704), []int32{100, 200}).
		WillReturnRows(rows)

	s := New(mock)
	got, err := s.BulkGetLastUpdatedByNexusModIDs(context.Background(), 1704, []int32{100, 200})
	if err != nil {
		t.Fatalf("BulkGetLastUpdatedByNexusModIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].LastUpdatedFilesAt == nil || got[1].LastUpdatedFilesAt != nil {
		t.Errorf("unexpected result: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBatchedInsertModsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	s := New(mock)
	saved, err := s.BatchedInsertMods(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchedInsertMods() error = %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("got %d mods, want 0", len(saved))
	}
}

func TestBatchedInsertMods(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "nexus_mod_id", "game_id", "name", "author_name", "author_id", "category_name",
		"category_id", "description", "thumbnail_link", "is_translation", "first_upload_at",
		"last_update_at", "last_updated_files_at", "created_at", "updated_at",
	}).AddRow(
		int32(1), int32(100), int32(1704), "Some Mod", "Someone", int32(5), nil,
		nil, nil, nil, false, now, now, nil, now, now,
	)

	mock.ExpectQuery("INSERT INTO mods").WillReturnRows(rows)

	s := New(mock)
	saved, err := s.BatchedInsertMods(context.Background(), []UnsavedMod{
		{NexusModID: 100, GameID: 1704, Name: "Some Mod", AuthorName: "Someone", AuthorID: 5,
			FirstUploadAt: now, LastUpdateAt: now},
	})
	if err != nil {
		t.Fatalf("BatchedInsertMods() error = %v", err)
	}
	if len(saved) != 1 || saved[0].Name != "Some Mod" {
		t.Errorf("unexpected result: %+v", saved)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateLastUpdatedFilesAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE mods SET last_updated_files_at").
		WithArgs(int32(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock)
	if err := s.UpdateLastUpdatedFilesAt(context.Background(), 7); err != nil {
		t.Fatalf("UpdateLastUpdatedFilesAt() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
