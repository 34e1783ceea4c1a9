package extract

// CallSyntax describes how a source language marks a string literal as a
// localization key.
type CallSyntax struct {
	// Name identifies the dialect ("swift").
	Name string
	// Prefixes are call heads that take the key as their first argument,
	// compared with whitespace removed, e.g. `String(localized:`.
	Prefixes []string
	// Suffixes are member accesses that follow the key literal, e.g. `.localized`.
	Suffixes []string
	// TableArg is a regular expression matched right after a suffix; its first
	// group names the table (module) the key belongs to.
	TableArg string
	// TableLabels are argument labels that carry a table name after the key
	// of a prefixed call, e.g. `tableName:`.
	TableLabels []string
	// InterpOpen and InterpClose delimit an interpolation segment inside a
	// literal. For Swift this is `\(` and `)`.
	InterpOpen  string
	InterpClose string
}

// Swift returns the call syntax of Swift / SwiftUI projects.
func Swift() CallSyntax {
	return CallSyntax{
		Name: "swift",
		Prefixes: []string{
			"String(localized:",
			"NSLocalizedString(",
			"LocalizedStringKey(",
			"LocalizedStringResource(",
		},
		Suffixes:    []string{".localized"},
		TableArg:    `^\(\s*from:\s*\.([A-Za-z_][A-Za-z0-9_]*)\s*[,)]`,
		TableLabels: []string{"table", "tableName"},
		InterpOpen:  `\(`,
		InterpClose: `)`,
	}
}

// Merge overlays user-configured prefixes and suffixes on cs. Empty lists
// keep the defaults.
func (cs CallSyntax) Merge(prefixes, suffixes []string) CallSyntax {
	if len(prefixes) > 0 {
		cs.Prefixes = append([]string(nil), prefixes...)
	}
	if len(suffixes) > 0 {
		cs.Suffixes = append([]string(nil), suffixes...)
	}
	return cs
}
