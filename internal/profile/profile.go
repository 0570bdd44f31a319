// Package profile resolves named merge profiles into engine options.
//
// A profile bundles the key column, row filter, dialect and malformed-row
// policy for one kind of merge. Two profiles are always available:
// "default" (built from the MERGE_* environment settings) and "filtered"
// (key must contain "amazon" and Body must be longer than one character).
// Per-run [Overrides] replace single settings. Filter clauses given in an
// override are added to the profile's; set NoFilter to drop the profile's
// filter first.
//
// A YAML file may add profiles or replace either built-in:
//
//	profiles:
//	  amazon:
//	    description: Amazon product pages with a body
//	    key_column: URL
//	    filter:
//	      key_contains: amazon
//	      min_length: {column: Body, length: 1}
//	    dialect: {delimiter: ",", quote: "\"", line_ending: crlf}
//	    malformed_rows: skip
package profile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// Built-in profile names.
const (
	DefaultName  = "default"
	FilteredName = "filtered"
)

// MinLength keeps rows whose Column holds more than Length characters.
type MinLength struct {
	Column string `yaml:"column" json:"column"`
	Length int    `yaml:"length" json:"length"`
}

// Filter is the declarative form of a row predicate. Empty means accept all.
type Filter struct {
	KeyContains string     `yaml:"key_contains,omitempty" json:"keyContains,omitempty"`
	MinLength   *MinLength `yaml:"min_length,omitempty" json:"minLength,omitempty"`
}

// Empty reports whether the filter accepts every row.
func (f Filter) Empty() bool {
	return f.KeyContains == "" && f.MinLength == nil
}

// Describe renders the filter for people, e.g. `URL contains "amazon"`.
func (f Filter) Describe(keyColumn string) string {
	var parts []string
	if f.KeyContains != "" {
		parts = append(parts, fmt.Sprintf("%s contains %q", keyColumn, f.KeyContains))
	}
	if f.MinLength != nil {
		parts = append(parts, fmt.Sprintf("%s longer than %d", f.MinLength.Column, f.MinLength.Length))
	}
	if len(parts) == 0 {
		return "all rows"
	}
	return strings.Join(parts, " and ")
}

// Dialect holds the textual dialect settings of a profile.
type Dialect struct {
	Delimiter  string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Quote      string `yaml:"quote,omitempty" json:"quote,omitempty"`
	LineEnding string `yaml:"line_ending,omitempty" json:"lineEnding,omitempty"`
}

// Profile is one named merge configuration.
type Profile struct {
	Name          string  `yaml:"-" json:"name"`
	Description   string  `yaml:"description,omitempty" json:"description,omitempty"`
	KeyColumn     string  `yaml:"key_column,omitempty" json:"keyColumn"`
	Filter        Filter  `yaml:"filter,omitempty" json:"filter"`
	Dialect       Dialect `yaml:"dialect,omitempty" json:"dialect"`
	MalformedRows string  `yaml:"malformed_rows,omitempty" json:"malformedRows"`
}

// Overrides are per-run settings layered over a profile. Empty fields keep
// the profile's value.
type Overrides struct {
	KeyColumn     string
	MalformedRows string
	Delimiter     string
	Quote         string
	LineEnding    string

	// NoFilter clears the profile's filter before KeyContains and
	// MinLength are applied.
	NoFilter    bool
	KeyContains string
	MinLength   *MinLength
}

// With returns a copy of p with the non-empty overrides applied.
func (p Profile) With(o Overrides) Profile {
	if o.NoFilter {
		p.Filter = Filter{}
	}
	if o.KeyColumn != "" {
		p.KeyColumn = o.KeyColumn
	}
	if o.MalformedRows != "" {
		p.MalformedRows = o.MalformedRows
	}
	if o.Delimiter != "" {
		p.Dialect.Delimiter = o.Delimiter
	}
	if o.Quote != "" {
		p.Dialect.Quote = o.Quote
	}
	if o.LineEnding != "" {
		p.Dialect.LineEnding = o.LineEnding
	}
	if o.KeyContains != "" {
		p.Filter.KeyContains = o.KeyContains
	}
	if o.MinLength != nil {
		ml := *o.MinLength
		p.Filter.MinLength = &ml
	}
	return p
}

// Resolved is a profile turned into engine and codec settings.
type Resolved struct {
	Name    string
	Options merge.Options
	Dialect tabular.Dialect
	Filter  string
}

// Resolve validates p and builds its merge options and dialect.
func (p Profile) Resolve() (Resolved, error) {
	key := strings.TrimSpace(p.KeyColumn)
	if key == "" {
		key = merge.DefaultKeyColumn
	}

	delim, err := tabular.ParseRune(p.Dialect.Delimiter)
	if err != nil {
		return Resolved{}, fmt.Errorf("profile %s: delimiter: %w", p.Name, err)
	}
	quote, err := tabular.ParseRune(p.Dialect.Quote)
	if err != nil {
		return Resolved{}, fmt.Errorf("profile %s: quote: %w", p.Name, err)
	}
	policy, err := tabular.ParseMalformedPolicy(p.MalformedRows)
	if err != nil {
		return Resolved{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}

	var terminator string
	switch strings.ToLower(p.Dialect.LineEnding) {
	case "", "crlf":
		terminator = "\r\n"
	case "lf":
		terminator = "\n"
	default:
		return Resolved{}, fmt.Errorf("profile %s: line ending %q must be crlf or lf", p.Name, p.Dialect.LineEnding)
	}

	dialect := tabular.Dialect{
		Delimiter:  delim,
		Quote:      quote,
		Terminator: terminator,
		Malformed:  policy,
	}
	if err := dialect.Validate(); err != nil {
		return Resolved{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}

	var preds []merge.Predicate
	if p.Filter.KeyContains != "" {
		preds = append(preds, merge.ColumnContains(key, p.Filter.KeyContains))
	}
	if ml := p.Filter.MinLength; ml != nil {
		if ml.Column == "" || ml.Length < 0 {
			return Resolved{}, fmt.Errorf("profile %s: min_length needs a column and a non-negative length", p.Name)
		}
		preds = append(preds, merge.LongerThan(ml.Column, ml.Length))
	}

	return Resolved{
		Name:    p.Name,
		Options: merge.Options{KeyColumn: key, Predicate: merge.AllOf(preds...)},
		Dialect: dialect,
		Filter:  p.Filter.Describe(key),
	}, nil
}

// Set is a collection of profiles with one default.
type Set struct {
	profiles map[string]Profile
	fallback string
}

// Builtin returns the built-in profiles with settings from cfg.
func Builtin(cfg config.MergeConfig) *Set {
	base := Profile{
		KeyColumn:     cfg.KeyColumn,
		MalformedRows: cfg.MalformedRows,
		Dialect: Dialect{
			Delimiter:  cfg.Delimiter,
			Quote:      cfg.Quote,
			LineEnding: cfg.LineEnding,
		},
	}

	def := base
	def.Name = DefaultName
	def.Description = "Merge every row that has a key"
	def.Filter.KeyContains = cfg.FilterKeyContains
	if cfg.FilterMinLengthColumn != "" {
		def.Filter.MinLength = &MinLength{Column: cfg.FilterMinLengthColumn, Length: cfg.FilterMinLength}
	}
	if !def.Filter.Empty() {
		def.Description = "Merge rows matching the configured filter"
	}

	filtered := base
	filtered.Name = FilteredName
	filtered.Description = "Only Amazon URLs with a non-trivial Body"
	filtered.Filter = Filter{
		KeyContains: "amazon",
		MinLength:   &MinLength{Column: "Body", Length: 1},
	}

	fallback := cfg.DefaultProfile
	if fallback == "" {
		fallback = DefaultName
	}

	return &Set{
		profiles: map[string]Profile{DefaultName: def, FilteredName: filtered},
		fallback: fallback,
	}
}

type file struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load returns the built-in profiles merged with those in path. An empty
// path yields only the built-ins.
func Load(path string, cfg config.MergeConfig) (*Set, error) {
	set := Builtin(cfg)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profiles: %w", err)
		}
		if err := set.parse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse profiles %s: %w", path, err)
		}
	}
	if _, ok := set.profiles[set.fallback]; !ok {
		return nil, fmt.Errorf("default profile %q is not defined", set.fallback)
	}
	return set, nil
}

// Parse is Load for profile YAML already in memory.
func Parse(data []byte, cfg config.MergeConfig) (*Set, error) {
	set := Builtin(cfg)
	if err := set.parse(data, cfg); err != nil {
		return nil, err
	}
	if _, ok := set.profiles[set.fallback]; !ok {
		return nil, fmt.Errorf("default profile %q is not defined", set.fallback)
	}
	return set, nil
}

func (s *Set) parse(data []byte, cfg config.MergeConfig) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for name, p := range f.Profiles {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("profile with empty name")
		}
		p.Name = name
		p = fillDefaults(p, cfg)
		if _, err := p.Resolve(); err != nil {
			return err
		}
		s.profiles[name] = p
	}
	return nil
}

// fillDefaults copies environment defaults into unset profile fields.
// Filters are never inherited.
func fillDefaults(p Profile, cfg config.MergeConfig) Profile {
	if p.KeyColumn == "" {
		p.KeyColumn = cfg.KeyColumn
	}
	if p.MalformedRows == "" {
		p.MalformedRows = cfg.MalformedRows
	}
	if p.Dialect.Delimiter == "" {
		p.Dialect.Delimiter = cfg.Delimiter
	}
	if p.Dialect.Quote == "" {
		p.Dialect.Quote = cfg.Quote
	}
	if p.Dialect.LineEnding == "" {
		p.Dialect.LineEnding = cfg.LineEnding
	}
	return p
}

// Get returns the named profile; an empty name selects the default.
func (s *Set) Get(name string) (Profile, bool) {
	if name == "" {
		name = s.fallback
	}
	p, ok := s.profiles[name]
	return p, ok
}

// DefaultName returns the name used when a run names no profile.
func (s *Set) DefaultName() string { return s.fallback }

// List returns every profile, default first, the rest by name.
func (s *Set) List() []Profile {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		if name != s.fallback {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Profile, 0, len(s.profiles))
	if p, ok := s.profiles[s.fallback]; ok {
		out = append(out, p)
	}
	for _, name := range names {
		out = append(out, s.profiles[name])
	}
	return out
}
