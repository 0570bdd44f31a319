package core

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCountingReader(t *testing.T) {
	cr := newCountingReader(strings.NewReader("hello, world"), 0, "a.csv")
	data, err := io.ReadAll(cr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("ReadAll() = %q", data)
	}
	if cr.BytesRead() != 12 {
		t.Errorf("BytesRead() = %d, want 12", cr.BytesRead())
	}
}

func TestCountingReader_Limit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int64
		wantErr bool
	}{
		{"under limit", "abc", 5, false},
		{"at limit", "abcde", 5, false},
		{"over limit", "abcdef", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := newCountingReader(strings.NewReader(tt.input), tt.max, "a.csv")
			_, err := io.ReadAll(cr)
			if got := errors.Is(err, ErrFileTooLarge); got != tt.wantErr {
				t.Errorf("ReadAll() error = %v, want too large %v", err, tt.wantErr)
			}
		})
	}
}
