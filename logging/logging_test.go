package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_LevelAndFile(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lokscan.log")
			log, err := New(Options{Verbose: tc.verbose, File: path})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			log.Debug("scanning", zap.String("file", "Home.swift"))
			log.Warn("duplicate table", zap.String("module", "Localizable"))
			log.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			out := string(data)
			if got := strings.Contains(out, "scanning"); got != tc.wantDebug {
				t.Errorf("debug line present = %v, want %v:\n%s", got, tc.wantDebug, out)
			}
			if !strings.Contains(out, "duplicate table") || !strings.Contains(out, "WARN") {
				t.Errorf("warning missing:\n%s", out)
			}
			if strings.Contains(out, "\x1b[") {
				t.Errorf("file output is colored:\n%s", out)
			}
		})
	}
}

func TestNew_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lokscan.json")
	log, err := New(Options{JSON: true, File: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Error("write failed", zap.String("path", "de.lproj/Localizable.strings"))
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.SplitN(string(data), "\n", 2)[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if rec["msg"] != "write failed" || rec["path"] != "de.lproj/Localizable.strings" || rec["timestamp"] == nil {
		t.Errorf("record = %v", rec)
	}
}

func TestMust_FallsBackToNop(t *testing.T) {
	log := Must(Options{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if log == nil {
		t.Fatal("Must() = nil")
	}
	log.Info("ignored")
}
