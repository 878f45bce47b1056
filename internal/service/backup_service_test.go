package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBackupService_RoundTrip(t *testing.T) {
	responses := t.TempDir()
	backups := t.TempDir()
	if err := os.WriteFile(filepath.Join(responses, "p1.csv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(responses, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewBackupService(nil, responses, backups)
	name, count, err := svc.Backup()
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 file backed up, got %d", count)
	}

	list, err := svc.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != name {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := os.Remove(filepath.Join(responses, "p1.csv")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	restored, err := svc.Restore(name)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 file restored, got %d", restored)
	}
	raw, err := os.ReadFile(filepath.Join(responses, "p1.csv"))
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(raw) != "a,b\n1,2\n" {
		t.Fatalf("restored content mismatch: %q", raw)
	}
}

func TestBackupService_RestoreUnknown(t *testing.T) {
	svc := NewBackupService(nil, t.TempDir(), t.TempDir())
	if _, err := svc.Restore("missing.zip"); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestBackupService_RestoreRejectsTraversal(t *testing.T) {
	svc := NewBackupService(nil, t.TempDir(), t.TempDir())
	if _, err := svc.Restore("../outside.zip"); !errors.Is(err, ErrBadBackupName) {
		t.Fatalf("expected ErrBadBackupName, got %v", err)
	}
}

func TestBackupService_ListEmptyDir(t *testing.T) {
	svc := NewBackupService(nil, t.TempDir(), filepath.Join(t.TempDir(), "never-created"))
	list, err := svc.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}
