// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package trust

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// defaultAliases seeds the registry. Keys are canonical names.
var defaultAliases = map[string][]string{
	"Golden State Warriors": {"Warriors", "Dubs", "GSW", "Golden State"},
	"Kansas City Chiefs":    {"Chiefs", "KC Chiefs", "KC"},
	"Boston Celtics":        {"Celtics", "Cs", "BOS"},
	"New York Knicks":       {"Knicks", "NYK"},
	"Philadelphia 76ers":    {"Sixers", "76ers", "PHI"},
	"San Francisco 49ers":   {"Niners", "49ers", "SF"},
	"Tampa Bay Buccaneers":  {"Bucs", "Buccaneers", "TB"},
	"Manchester United":     {"Man Utd", "Man United", "MUFC"},
}

// NormalizeName folds a team or selection name for comparison: accents are
// stripped, case is folded, punctuation becomes a space and whitespace is
// collapsed.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// AliasRegistry maps aliases to canonical team names.
// It is safe for concurrent use.
type AliasRegistry struct {
	mu        sync.RWMutex
	canonical map[string]string // normalized alias -> canonical display name
}

// NewAliasRegistry returns an empty registry.
func NewAliasRegistry() *AliasRegistry {
	return &AliasRegistry{canonical: make(map[string]string)}
}

// DefaultAliasRegistry returns a registry seeded with well-known nicknames.
func DefaultAliasRegistry() *AliasRegistry {
	r := NewAliasRegistry()
	for name, aliases := range defaultAliases {
		_ = r.Add(name, aliases...)
	}
	return r
}

// Add registers a canonical name and its aliases. An alias already bound to a
// different canonical name is rejected.
func (r *AliasRegistry) Add(canonical string, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(canonical, aliases...)
}

func (r *AliasRegistry) addLocked(canonical string, aliases ...string) error {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return fmt.Errorf("alias registry: empty canonical name")
	}
	for _, name := range append([]string{canonical}, aliases...) {
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		if existing, ok := r.canonical[key]; ok && existing != canonical {
			return fmt.Errorf("alias registry: %q already maps to %q, cannot map to %q", name, existing, canonical)
		}
		r.canonical[key] = canonical
	}
	return nil
}

// Canonical resolves a name or alias to its canonical name.
func (r *AliasRegistry) Canonical(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.canonical[NormalizeName(name)]
	return c, ok
}

// Len returns the number of registered keys.
func (r *AliasRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.canonical)
}

// Replace swaps the registry contents with those of other.
func (r *AliasRegistry) Replace(other *AliasRegistry) {
	other.mu.RLock()
	next := make(map[string]string, len(other.canonical))
	for k, v := range other.canonical {
		next[k] = v
	}
	other.mu.RUnlock()

	r.mu.Lock()
	r.canonical = next
	r.mu.Unlock()
}

// LoadAliasesFile builds a registry from the defaults plus a YAML file of
// the form `canonical: [alias, ...]`. An empty path yields the defaults.
func LoadAliasesFile(path string) (*AliasRegistry, error) {
	r := DefaultAliasRegistry()
	if path == "" {
		return r, nil
	}

	// #nosec G304 -- alias file path is provided by the operator
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}

	var doc map[string][]string
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}

	// Deterministic order so conflicts are reported consistently.
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.Add(name, doc[name]...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
