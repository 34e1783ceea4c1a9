package backup

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestProtect_SavesOriginalOnce(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "App/de.lproj/Localizable.strings", `"a" = "1";`)
	m := New(root, "", true, nil)

	for _, content := range []string{`"a" = "2";`, `"a" = "3";`} {
		if err := m.Protect(path, func() error {
			return os.WriteFile(path, []byte(content), 0644)
		}); err != nil {
			t.Fatalf("Protect() error: %v", err)
		}
	}

	id := m.SessionID()
	if id == "" {
		t.Fatal("SessionID() empty after a protected write")
	}
	if _, err := time.Parse(timeLayout, id[:len(timeLayout)]); err != nil || len(id) != len(timeLayout)+9 {
		t.Errorf("SessionID() = %q, want <timestamp>-<uuid8>", id)
	}
	saved := filepath.Join(m.SessionDir(), "App", "de.lproj", "Localizable.strings")
	if got := readString(t, saved); got != `"a" = "1";` {
		t.Errorf("backup = %q, want the content before the first write", got)
	}
	if got := readString(t, path); got != `"a" = "3";` {
		t.Errorf("file = %q, want the last write", got)
	}
}

func TestProtect_RollsBackFailedWrite(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "de.lproj/AI.strings", "original")
	m := New(root, "", true, nil)

	boom := errors.New("disk full")
	err := m.Protect(path, func() error {
		os.WriteFile(path, []byte("half-writ"), 0644)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Protect() error = %v, want %v", err, boom)
	}
	if got := readString(t, path); got != "original" {
		t.Errorf("file after failed write = %q, want original", got)
	}
}

func TestProtect_RemovesCreatedFileOnFailure(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "fr.lproj", "Localizable.strings")
	m := New(root, "", false, nil)

	err := m.Protect(path, func() error {
		os.MkdirAll(filepath.Dir(path), 0755)
		os.WriteFile(path, []byte("partial"), 0644)
		return errors.New("failed")
	})
	if err == nil {
		t.Fatal("Protect() error = nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("created file kept after failure: %v", err)
	}
	if m.SessionID() != "" {
		t.Error("disabled manager started a session")
	}
	if _, err := os.Stat(m.Dir()); !os.IsNotExist(err) {
		t.Error("disabled manager created the backup directory")
	}
}

func TestSnapshotListRestore(t *testing.T) {
	root := t.TempDir()
	de := writeFile(t, root, "App/de.lproj/Localizable.strings", "de v1")
	tr := writeFile(t, root, "App/tr.lproj/Localizable.strings", "tr v1")
	writeFile(t, root, "App/en.lproj/Localizable.strings", "en v1")

	m := New(root, "", true, nil)
	m.SetCommand("lang remove")
	n, err := m.Snapshot([]string{"**/de.lproj/*.strings", "**/tr.lproj/*.strings", "**/de.lproj/*.strings"})
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if n != 2 {
		t.Fatalf("Snapshot() = %d, want 2", n)
	}

	// the session also tracks a file it creates
	fr := filepath.Join(root, "App", "fr.lproj", "Localizable.strings")
	if err := m.Protect(fr, func() error {
		os.MkdirAll(filepath.Dir(fr), 0755)
		return os.WriteFile(fr, []byte("fr"), 0644)
	}); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(de, []byte("de v2"), 0644)
	os.Remove(tr)

	sessions, err := m.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != m.SessionID() {
		t.Fatalf("List() = %+v", sessions)
	}
	s := sessions[0]
	if s.Command != "lang remove" || !reflect.DeepEqual(s.Files, []string{"App/de.lproj/Localizable.strings", "App/tr.lproj/Localizable.strings"}) {
		t.Errorf("manifest = %+v", s.Manifest)
	}
	if !reflect.DeepEqual(s.Created, []string{"App/fr.lproj/Localizable.strings"}) {
		t.Errorf("Created = %v", s.Created)
	}

	done, err := New(root, "", true, nil).Restore("latest")
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if len(done) != 3 {
		t.Errorf("Restore() = %v, want 3 paths", done)
	}
	if got := readString(t, de); got != "de v1" {
		t.Errorf("de after restore = %q", got)
	}
	if got := readString(t, tr); got != "tr v1" {
		t.Errorf("tr after restore = %q", got)
	}
	if _, err := os.Stat(fr); !os.IsNotExist(err) {
		t.Error("file created by the session survived Restore")
	}
}

func TestRestore_Unknown(t *testing.T) {
	m := New(t.TempDir(), "", true, nil)
	if _, err := m.Restore("latest"); err == nil || !strings.Contains(err.Error(), "no backups") {
		t.Errorf("Restore(latest) on empty dir = %v", err)
	}
	if _, err := m.Restore("20200101-000000-deadbeef"); err == nil {
		t.Error("Restore(unknown) succeeded")
	}
}

func TestCleanup(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DefaultDir)
	ids := []string{"20240101-000000-aaaaaaaa", "20240102-000000-bbbbbbbb", "20240103-000000-cccccccc"}
	for _, id := range ids {
		writeFile(t, dir, id+"/"+manifestName, "time: 2024-01-01T00:00:00Z\nfiles: []\n")
	}

	m := New(root, "", true, nil)
	removed, err := m.Cleanup(1)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{ids[1], ids[0]}) {
		t.Errorf("Cleanup() = %v", removed)
	}
	sessions, _ := m.List()
	if len(sessions) != 1 || sessions[0].ID != ids[2] {
		t.Errorf("List() after Cleanup = %+v", sessions)
	}
}
