package session

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoad_missingFile(t *testing.T) {
	t.Parallel()
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RunID != "" || s.Status != "" {
		t.Errorf("Load missing: want zero State, got %+v", s)
	}
}

func TestSaveLoad_roundtrip(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "state")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Begin("abc123", "main", start)
	if s.RunID == "" || s.Status != StatusRunning {
		t.Fatalf("Begin: %+v", s)
	}
	s.Mode = "changed"
	s.BaseRef = "auto-unit-test-baseline"
	s.Finish(StatusNoTests, errors.New("no test cases generated"), start.Add(time.Minute))
	if err := Save(dir, &s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != s.RunID || got.Status != StatusNoTests || got.Mode != "changed" ||
		got.BaseRef != s.BaseRef || got.HeadRef != "abc123" || got.Branch != "main" || !got.StartedAt.Equal(start) {
		t.Errorf("roundtrip: got %+v, want %+v", got, s)
	}
	if got.Error != "no test cases generated" || !got.FinishedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("Finish fields: %+v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestBegin_uniqueRunIDs(t *testing.T) {
	t.Parallel()
	a := Begin("h", "b", time.Now())
	b := Begin("h", "b", time.Now())
	if a.RunID == b.RunID {
		t.Error("run IDs must differ")
	}
}

func TestLoad_invalidJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFilename), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load invalid JSON: expected error")
	}
}

func TestSave_nilState(t *testing.T) {
	t.Parallel()
	if err := Save(t.TempDir(), nil); err == nil {
		t.Fatal("Save(nil): expected error")
	}
}

func TestSave_mkdirAllFails(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	readOnly := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(readOnly, 0500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(readOnly, 0700)
	if err := Save(filepath.Join(readOnly, "sub", "state"), &State{RunID: "x"}); err == nil {
		t.Fatal("Save: expected error when state dir cannot be created")
	}
}

func TestAcquireLock_releaseThenReacquire(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	release, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	release()
	release2, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	release2()
}

func TestAcquireLock_secondCallFailsWithErrLocked(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	release, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer release()
	_, err = AcquireLock(dir)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("second AcquireLock: got %v, want ErrLocked", err)
	}
}

func TestLockHolder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if got := LockHolder(dir); got != 0 {
		t.Errorf("LockHolder without lock = %d, want 0", got)
	}
	release, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if got := LockHolder(dir); got != os.Getpid() {
		t.Errorf("LockHolder while held = %d, want %d", got, os.Getpid())
	}
	release()
	if got := LockHolder(dir); got != 0 {
		t.Errorf("LockHolder after release = %d, want 0", got)
	}
}
