package repl

import (
	"testing"

	"github.com/ardnew/kola/klvm"
)

func TestWordBounds(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		cursor    int
		wantWord  string
		wantStart int
		wantEnd   int
	}{
		{"command", "#ech", 4, "ech", 1, 4},
		{"deep markers", "###ech", 6, "ech", 3, 6},
		{"argument", "#echo he", 8, "he", 6, 8},
		{"variable", "#echo $na", 9, "na", 7, 9},
		{"braced variable", "${na", 4, "na", 2, 4},
		{"keyword value", "#load a type(ko", 15, "ko", 13, 15},
		{"mid word", "#echo", 3, "echo", 1, 5},
		{"empty after marker", "#", 1, "", 1, 1},
		{"cursor past end", "ab", 9, "ab", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, start, end := wordBounds(tt.input, tt.cursor)
			if word != tt.wantWord || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordBounds(%q, %d) = (%q, %d, %d), want (%q, %d, %d)",
					tt.input, tt.cursor, word, start, end,
					tt.wantWord, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		input string
		start int
		want  wordKind
	}{
		{"#ech", 1, wordCommand},
		{"  ##ech", 4, wordCommand},
		{"#echo he", 6, wordNone},
		{"#echo $na", 7, wordVariable},
		{"text ${na", 7, wordVariable},
		{"plain", 0, wordNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := kindOf(tt.input, tt.start); got != tt.want {
				t.Errorf("kindOf(%q, %d) = %d, want %d", tt.input, tt.start, got, tt.want)
			}
		})
	}
}

func TestCommandAt(t *testing.T) {
	tests := []struct {
		input  string
		cursor int
		want   string
		ok     bool
	}{
		{"#load a", 7, "load", true},
		{"#load", 5, "", false},
		{"## note", 7, "", false},
		{"text", 4, "", false},
		{"  #echo x", 9, "echo", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := commandAt(tt.input, tt.cursor)
			if got != tt.want || ok != tt.ok {
				t.Errorf("commandAt(%q, %d) = %q, %v; want %q, %v",
					tt.input, tt.cursor, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestUsage(t *testing.T) {
	file := klvm.NewEnv("File").
		Entry("open", nil, klvm.Args(1, 2, "encoding")).
		Exit("close", nil, klvm.Args(0, 0))

	lang := klvm.NewLang("L").
		Command("echo", nil, klvm.WithParams(klvm.Params{Variadic: true})).
		Command("any", nil).
		Env(file)

	rt, err := klvm.New(lang)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"echo", "echo ..."},
		{"any", "any ..."},
		{"open", "open arg1 [arg2] encoding(...) → enter File"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cmd, ok := rt.Top().Lookup(tt.name)
			if !ok {
				t.Fatalf("%s not found", tt.name)
			}

			if got := usage(cmd); got != tt.want {
				t.Errorf("usage(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
