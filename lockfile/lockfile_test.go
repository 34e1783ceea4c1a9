package lockfile

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/minios-linux/lokscan/health"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("hello world")
	h2 := Hash("hello world")
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash("different")
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Checksums) != 0 || lf.MemorySize() != 0 {
		t.Errorf("lock file not empty: %+v", lf)
	}
	if _, ok := lf.LastHealth(); ok {
		t.Error("LastHealth() reported a record for a new lock file")
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("version: [1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() succeeded on malformed YAML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.Update("App/de.lproj/Localizable.strings", "common.save", "Save")
	lf.Update("App/de.lproj/Localizable.strings", "common.cancel", "Cancel")
	lf.Update("App/tr.lproj/Localizable.strings", "common.save", "Save")
	lf.Remember("en", "de", "Save", "Speichern")
	lf.Remember("en", "tr", "Save", "Kaydet")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lf.RecordHealth(health.Score{Score: 87.5, Grade: "B", Hardcoded: 3}, at)

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Lock file not created at %s", path)
	}

	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}

	targets, keys := lf2.Stats()
	if targets != 2 || keys != 3 {
		t.Errorf("Stats() = %d, %d, want 2, 3", targets, keys)
	}
	if got, ok := lf2.Lookup("en", "tr", "Save"); !ok || got != "Kaydet" {
		t.Errorf("Lookup() = %q, %v, want Kaydet", got, ok)
	}
	rec, ok := lf2.LastHealth()
	if !ok {
		t.Fatal("LastHealth() lost after reload")
	}
	if rec.Score.Score != 87.5 || rec.Score.Grade != "B" || rec.Score.Hardcoded != 3 || !rec.Time.Equal(at) {
		t.Errorf("LastHealth() = %+v", rec)
	}
}

func TestTargetKey(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	tests := []struct {
		path string
		want string
	}{
		{filepath.FromSlash("/work/app/Resources/de.lproj/AI.strings"), "Resources/de.lproj/AI.strings"},
		{filepath.FromSlash("/elsewhere/de.lproj/AI.strings"), "/elsewhere/de.lproj/AI.strings"},
	}
	for _, tc := range tests {
		if got := TargetKey(root, tc.path); got != tc.want {
			t.Errorf("TargetKey(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsChanged(t *testing.T) {
	lf := newLockFile("")

	if !lf.IsChanged("de", "save", "Save") {
		t.Error("new entry should be changed")
	}

	lf.Update("de", "save", "Save")
	if lf.IsChanged("de", "save", "Save") {
		t.Error("unchanged entry should not be changed")
	}
	if !lf.IsChanged("de", "save", "Save all") {
		t.Error("modified entry should be changed")
	}
	if !lf.IsChanged("tr", "save", "Save") {
		t.Error("entry of another target should be changed")
	}
}

func TestStale(t *testing.T) {
	lf := newLockFile("")
	lf.Update("de", "save", "Save")
	lf.Update("de", "cancel", "Cancel")
	lf.Update("de", "title", "Title")

	got := lf.Stale("de", map[string]string{
		"save":   "Save all",
		"cancel": "Cancel",
		"title":  "Main title",
		"new":    "Never translated",
	})
	want := []string{"save", "title"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Stale() = %v, want %v", got, want)
	}
	if got := lf.Stale("fr", map[string]string{"save": "Save"}); len(got) != 0 {
		t.Errorf("Stale(unrecorded target) = %v, want none", got)
	}
}

func TestClean(t *testing.T) {
	lf := newLockFile("")
	lf.Update("de", "a", "A")
	lf.Update("de", "b", "B")
	lf.Update("de", "c", "C")

	lf.Clean("de", []string{"a", "c"})

	if _, keys := lf.Stats(); keys != 2 {
		t.Errorf("keys after Clean = %d, want 2", keys)
	}
	if !lf.IsChanged("de", "b", "B") {
		t.Error("cleaned key b should be reported as changed")
	}
	lf.Clean("missing", []string{"a"})
}

func TestRemoveTarget(t *testing.T) {
	lf := newLockFile("")
	lf.Update("de", "a", "A")
	lf.Update("tr", "a", "A")

	lf.RemoveTarget("de")

	if got := lf.Targets(); !reflect.DeepEqual(got, []string{"tr"}) {
		t.Errorf("Targets() = %v, want [tr]", got)
	}
}

func TestMemory(t *testing.T) {
	lf := newLockFile("")
	if _, ok := lf.Lookup("en", "de", "Save"); ok {
		t.Fatal("Lookup() hit on an empty memory")
	}
	lf.Remember("en", "de", "Save", "Speichern")
	lf.Remember("en", "de", "Cancel", "Abbrechen")
	lf.Remember("en", "fr", "Save", "Enregistrer")
	lf.Remember("tr", "de", "Kaydet", "Speichern")

	if got, _ := lf.Lookup("en", "de", "Save"); got != "Speichern" {
		t.Errorf("Lookup(en, de, Save) = %q", got)
	}
	if lf.MemorySize() != 4 {
		t.Errorf("MemorySize() = %d, want 4", lf.MemorySize())
	}

	lf.Forget("de")
	if _, ok := lf.Lookup("tr", "de", "Kaydet"); ok {
		t.Error("Forget(de) kept a translation into de")
	}
	if got, _ := lf.Lookup("en", "fr", "Save"); got != "Enregistrer" {
		t.Errorf("Forget(de) dropped the fr memory")
	}
}

func TestSummary(t *testing.T) {
	lf := newLockFile("")
	if got := lf.Summary(); got != "empty" {
		t.Errorf("Summary() = %q, want empty", got)
	}
	lf.Update("de", "a", "A")
	lf.Update("de", "b", "B")
	lf.Remember("en", "de", "A", "A")
	want := "1 targets, 2 keys, 1 remembered translations (de: 2 keys)"
	if got := lf.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf := newLockFile(filepath.Join(t.TempDir(), LockFileName))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := string(rune('a' + j%26))
				lf.Update("de", key, key)
				lf.IsChanged("de", key, key)
				lf.Remember("en", "de", key, key)
				lf.Lookup("en", "de", key)
			}
		}(i)
	}
	wg.Wait()

	if _, keys := lf.Stats(); keys != 26 {
		t.Errorf("keys = %d, want 26", keys)
	}
	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
