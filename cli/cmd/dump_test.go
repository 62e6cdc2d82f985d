package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/debug"
)

func TestTokens(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{"a.kola": "#cmd 1\n"})

	tests := []struct {
		format debug.Format
		want   string
	}{
		{debug.FormatText, "\tCMD(\"cmd\")"},
		{debug.FormatJSON, `"kind":"INT"`},
		{debug.FormatYAML, "kind: END"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			cmd := &Tokens{Dump: Dump{Format: tt.format, Source: filepath.Join(dir, "a.kola")}}

			out, _, err := execute(t, cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestFmt(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"ok.kola":  "#title   \"A Story\"   part(1)\n  Once upon a time.\n",
		"bad.kola": "#title \"open\n",
	})

	out, _, err := execute(t, &Fmt{Dump: Dump{Source: filepath.Join(dir, "ok.kola")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "#title \"A Story\" part(1)\nOnce upon a time.\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	out, _, err = execute(t, &Fmt{Dump: Dump{Source: filepath.Join(dir, "bad.kola")}})
	if !errors.Is(err, lexer.ErrUnterminatedString) {
		t.Errorf("error = %v, want the syntax error", err)
	}

	if !strings.HasPrefix(out, "## [ERROR] ") {
		t.Errorf("output = %q", out)
	}

	_, _, err = execute(t, &Fmt{Dump: Dump{Source: filepath.Join(dir, "missing.kola")}})
	if !errors.Is(err, ErrSource) {
		t.Errorf("error = %v, want ErrSource", err)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, &Version{})
	if err != nil || !strings.HasPrefix(out, "kola ") {
		t.Errorf("version = %q, %v", out, err)
	}
}
