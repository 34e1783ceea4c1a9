package diag

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", Configf(".lokscan.yaml", "bad weights"), ExitConfig},
		{"parse", &ParseError{File: "en.lproj/Common.strings", Line: 3, Reason: "unterminated string"}, ExitConfig},
		{"wrapped parse", fmt.Errorf("loading: %w", &ParseError{File: "x", Reason: "y"}), ExitConfig},
		{"threshold", fmt.Errorf("score 40 < 80: %w", ErrThreshold), ExitThreshold},
		{"language", &LanguageNotFoundError{Lang: "xx"}, ExitFailure},
		{"io", &IOError{Op: "writing", Path: "a", Err: errors.New("disk full")}, ExitFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestExitCodeAggregatePicksMostSevere(t *testing.T) {
	var c Collector
	c.Add(fmt.Errorf("below: %w", ErrThreshold))
	c.Add(&ParseError{File: "de.lproj/AI.strings", Line: 1, Reason: "duplicate key"})
	c.Add(&IOError{Op: "writing", Path: "x", Err: errors.New("boom")})

	if got := ExitCode(c.Err()); got != ExitConfig {
		t.Fatalf("ExitCode(aggregate) = %d, want %d", got, ExitConfig)
	}
}

func TestCollectorConcurrentAndSorted(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 9; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(fmt.Errorf("err %d", i))
		}(i)
	}
	c.Add(nil)
	wg.Wait()

	if c.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", c.Len())
	}
	errs := c.Errors()
	for i := 1; i < len(errs); i++ {
		if errs[i-1].Error() > errs[i].Error() {
			t.Fatalf("Errors() not sorted: %q before %q", errs[i-1], errs[i])
		}
	}
	if !strings.HasPrefix(c.Err().Error(), "10 errors occurred") {
		t.Fatalf("Err() = %q", c.Err())
	}
}

func TestCollectorEmpty(t *testing.T) {
	var c Collector
	if c.Err() != nil {
		t.Fatalf("Err() = %v, want nil", c.Err())
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&ParseError{File: "a.strings", Line: 4, Reason: "missing ';'"}).Error(); got != "a.strings:4: missing ';'" {
		t.Fatalf("ParseError = %q", got)
	}
	if got := (&LanguageNotFoundError{Lang: "fr", Module: "AI"}).Error(); got != `language "fr" has no table for module "AI"` {
		t.Fatalf("LanguageNotFoundError = %q", got)
	}
	te := &TranslationError{Key: "home.title", Lang: "de", Err: errors.New("timeout")}
	if !errors.Is(te, te.Err) {
		t.Fatalf("TranslationError does not unwrap")
	}
}

func TestSortAndCountIssues(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityWarning, Code: CodeEmptyValue, File: "b", Line: 2},
		{Severity: SeverityError, Code: CodeDuplicateKey, File: "a", Line: 9},
		{Severity: SeverityInfo, Code: CodeTodo, File: "a", Line: 1},
	}
	SortIssues(issues)
	if issues[0].Code != CodeTodo || issues[2].File != "b" {
		t.Fatalf("SortIssues() order = %+v", issues)
	}
	e, w, i := CountIssues(issues)
	if e != 1 || w != 1 || i != 1 {
		t.Fatalf("CountIssues() = %d,%d,%d, want 1,1,1", e, w, i)
	}
}
