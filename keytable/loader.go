package keytable

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/workpool"
)

// Record is the raw result of parsing one table file.
type Record struct {
	File    TableFile
	Entries []Entry
	Err     error
}

// Build turns parse records into an Index. It does no I/O. A record with
// Err contributes an empty table and a diagnostic, so a broken file never
// half-loads. A second record for the same module and language is a
// diagnostic too; the first one (by path) wins.
func Build(records []Record, primary string) *Index {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].File.Path < sorted[j].File.Path
	})

	idx := newIndex(primary)
	for _, rec := range sorted {
		f := rec.File
		if existing, dup := idx.Table(f.Module, f.Lang); dup {
			idx.diags.Add(&diag.ParseError{
				File:   f.Path,
				Reason: fmt.Sprintf("second table for module %q language %q (first: %s); ignored", f.Module, f.Lang, existing.Path),
			})
			continue
		}
		if rec.Err != nil {
			idx.diags.Add(rec.Err)
			idx.ensure(f.Module, f.Lang, f.Path)
			continue
		}
		t := NewTable(f.Module, f.Lang, f.Path, rec.Entries)
		idx.mu.Lock()
		if idx.tables[f.Module] == nil {
			idx.tables[f.Module] = make(map[string]*Table)
		}
		idx.tables[f.Module][f.Lang] = t
		idx.mu.Unlock()
	}
	return idx
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// Primary is the primary language.
	Primary string
	// IgnoreModules are table names never loaded (e.g. InfoPlist).
	IgnoreModules []string
	// Workers bounds parallel parsing; <= 0 uses one per CPU.
	Workers int
}

// Load lists and parses every table below root through adapter and builds
// the Index. Listing failures abort; per-file parse failures become
// diagnostics of the Index.
func Load(ctx context.Context, adapter Adapter, root string, opts LoadOptions, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	files, err := adapter.ListKeyFiles(root)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	ignored := make(map[string]bool, len(opts.IgnoreModules))
	for _, m := range opts.IgnoreModules {
		ignored[m] = true
	}
	var wanted []TableFile
	for _, f := range files {
		if ignored[f.Module] {
			log.Debug("ignoring table", zap.String("file", f.Path))
			continue
		}
		wanted = append(wanted, f)
	}

	records := make([]Record, len(wanted))
	indexes := make([]int, len(wanted))
	for i := range indexes {
		indexes[i] = i
	}
	_ = workpool.Run(ctx, indexes, opts.Workers, 0, func(ctx context.Context, i int) error {
		f := wanted[i]
		entries, err := adapter.ParseTable(f.Path)
		records[i] = Record{File: f, Entries: entries, Err: err}
		log.Debug("loaded table",
			zap.String("module", f.Module),
			zap.String("lang", f.Lang),
			zap.Int("keys", len(entries)),
			zap.Error(err))
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := Build(records, opts.Primary)
	log.Debug("index built",
		zap.Int("tables", len(wanted)),
		zap.Strings("modules", idx.Modules()),
		zap.Strings("languages", idx.Languages()))
	return idx, nil
}
