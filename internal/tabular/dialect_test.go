package tabular

import (
	"errors"
	"testing"
)

func TestParseRune(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{",", ',', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"Semicolon", ';', false},
		{"|", '|', false},
		{"§", '§', false},
		{"ab", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRune(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRune(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRune(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMalformedPolicy(t *testing.T) {
	for in, want := range map[string]MalformedPolicy{"": MalformedSkip, "SKIP": MalformedSkip, "fail": MalformedFail, "fail-fast": MalformedFail} {
		got, err := ParseMalformedPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseMalformedPolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMalformedPolicy("ignore"); err == nil {
		t.Error("ParseMalformedPolicy(ignore) should fail")
	}
}

func TestDialect_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Dialect
		wantErr bool
	}{
		{"zero value", Dialect{}, false},
		{"tab", Dialect{Delimiter: '\t', Terminator: "\n"}, false},
		{"same delimiter and quote", Dialect{Delimiter: '"'}, true},
		{"newline delimiter", Dialect{Delimiter: '\n'}, true},
		{"bad terminator", Dialect{Terminator: ";"}, true},
		{"bad policy", Dialect{Malformed: "ignore"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDialect) {
				t.Errorf("Validate() error %v does not match ErrInvalidDialect", err)
			}
		})
	}
}
