package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_WritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "URL,Title\nu1,Hello\nu2,Old\n")
	b := writeFile(t, dir, "b.csv", "URL,Title,Body\nu2,New,Text\n")
	out := filepath.Join(dir, "merged.csv")

	code, _, stderr := runCLI(t, "", "-o", out, a, b)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr = %s", code, stderr)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "URL,Title,Body\r\nu1,Hello,\r\nu2,New,Text\r\n"
	if string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if !strings.Contains(stderr, "2 rows, 3 columns") {
		t.Errorf("stderr = %q, want summary line", stderr)
	}
}

func TestRun_Stdout(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "id;name\n1;x\n")

	code, stdout, stderr := runCLI(t, "id;name\n1;y\n", "-o", "-", "-k", "id", "-d", "semicolon", "--lf", a, "-")
	if code != exitOK {
		t.Fatalf("run() = %d, stderr = %s", code, stderr)
	}
	if want := "id;name\n1;y\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty", stderr)
	}
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "URL,Body\nhttp://amazon.com/a,long\nhttp://other.com/b,long\nhttp://amazon.com/c,x\n")

	code, stdout, stderr := runCLI(t, "", "-o", "-", "-p", "filtered", a)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr = %s", code, stderr)
	}
	if want := "URL,Body\r\nhttp://amazon.com/a,long\r\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestRun_NoFilter(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "URL,Body\nhttp://amazon.com/a,x\nhttp://other.com/b,long\n")

	code, stdout, stderr := runCLI(t, "", "-o", "-", "-p", "filtered", "--no-filter", "--lf", a)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr = %s", code, stderr)
	}
	if want := "URL,Body\nhttp://amazon.com/a,x\nhttp://other.com/b,long\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no files", args: nil, want: exitUsage},
		{name: "unknown flag", args: []string{"--bogus", "a.csv"}, want: exitUsage},
		{name: "non-integer min length", args: []string{"--min-length", "abc", "--min-length-column", "Body", "a.csv"}, want: exitUsage},
		{name: "min length without column", args: []string{"--min-length", "3", "a.csv"}, want: exitUsage},
		{name: "help", args: []string{"-h"}, want: exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, "", tt.args...)
			if code != tt.want {
				t.Errorf("run() = %d, want %d", code, tt.want)
			}
			if !strings.Contains(stderr, "Usage: csvmerge") && tt.name != "min length without column" {
				t.Errorf("stderr = %q, want usage", stderr)
			}
			if tt.want == exitUsage && !strings.Contains(stderr, "csvmerge: ") {
				t.Errorf("stderr = %q, want the reason for the failure", stderr)
			}
		})
	}
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "URL\nu1\n")
	truncated := writeFile(t, dir, "bad.csv", "URL,Body\nu1,\"never closed\n")

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{name: "missing file", args: []string{good, filepath.Join(dir, "missing.csv")}, wantStderr: "missing.csv"},
		{name: "truncated input", args: []string{good, truncated}, wantStderr: "CSV003"},
		{name: "unknown profile", args: []string{"-p", "nope", good}, wantStderr: "MRG001"},
		{name: "bad policy", args: []string{"--on-malformed", "ignore", good}, wantStderr: "MRG002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "merged.csv")
			args := append([]string{"-o", out}, tt.args...)

			code, _, stderr := runCLI(t, "", args...)
			if code != exitError {
				t.Errorf("run() = %d, want %d", code, exitError)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantStderr)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("output file exists after failure (stat err = %v)", err)
			}
		})
	}
}

func TestOpenSources_StdinOnce(t *testing.T) {
	_, closeAll, err := openSources([]string{"-", "-"}, strings.NewReader(""))
	defer closeAll()
	if err == nil {
		t.Fatal("openSources() error = nil, want error for repeated stdin")
	}
}

func TestOpenSources_Order(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "URL\n")
	b := writeFile(t, dir, "b.csv", "URL\n")

	sources, closeAll, err := openSources([]string{b, "-", a}, strings.NewReader(""))
	defer closeAll()
	if err != nil {
		t.Fatalf("openSources() error = %v", err)
	}

	var names []string
	for _, s := range sources {
		names = append(names, s.Name)
	}
	want := []string{b, "stdin", a}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.csv")

	if err := writeFileAtomic(dest, func(w io.Writer) error {
		_, err := io.WriteString(w, "a,b\r\n")
		return err
	}); err != nil {
		t.Fatalf("writeFileAtomic() error = %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "a,b\r\n" {
		t.Fatalf("ReadFile() = %q, %v", got, err)
	}

	boom := errors.New("boom")
	err = writeFileAtomic(dest, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("writeFileAtomic() error = %v, want %v", err, boom)
	}

	// The previous file survives and no temp files are left behind.
	got, _ = os.ReadFile(dest)
	if string(got) != "a,b\r\n" {
		t.Errorf("dest = %q after failed write", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}
