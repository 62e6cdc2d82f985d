package repl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/kolamain"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{"help", "list", "vars", "edit", "clear", "quit"}

// isWordBoundary reports whether r delimits words for completion: spaces,
// the command marker, argument punctuation and variable references.
func isWordBoundary(r rune) bool {
	switch r {
	case ' ', '\t', lexer.Marker,
		'(', ')', ',', ':',
		'$', '{', '}', '"', '\'':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor and its byte boundaries within
// input. The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(max(cursor, 0), len(input))

	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// wordKind classifies the word starting at a byte offset.
type wordKind int

const (
	wordNone     wordKind = iota
	wordCommand           // command name right after the markers
	wordVariable          // $name or ${name}
)

func kindOf(input string, start int) wordKind {
	prefix := input[:start]

	if strings.HasSuffix(prefix, "$") || strings.HasSuffix(prefix, "${") {
		return wordVariable
	}

	head := strings.TrimLeft(prefix, " \t")
	if head != "" && strings.Trim(head, string(lexer.Marker)) == "" {
		return wordCommand
	}

	return wordNone
}

// commandAt returns the command name of a command line when the cursor is
// past it, in the argument list.
func commandAt(input string, cursor int) (string, bool) {
	head := strings.TrimLeft(input, " \t")
	body := strings.TrimLeft(head, string(lexer.Marker))

	if len(body) == len(head) {
		return "", false
	}

	name, _, _ := strings.Cut(body, " ")
	if name == "" {
		return "", false
	}

	nameEnd := len(input) - len(body) + len(name)
	if cursor <= nameEnd {
		return "", false
	}

	return name, true
}

// commandNames returns the non-virtual commands reachable from s.
func commandNames(s *klvm.Scope) []string {
	var names []string

	for _, name := range s.Names() {
		if !strings.HasPrefix(name, "@") {
			names = append(names, name)
		}
	}

	return names
}

// usage renders the argument list a command accepts.
func usage(cmd *klvm.Command) string {
	var b strings.Builder

	b.WriteString(cmd.Name())

	switch p := cmd.Params(); {
	case p == nil:
		b.WriteString(" ...")

	default:
		for i := range p.Min {
			fmt.Fprintf(&b, " arg%d", i+1)
		}

		if p.Variadic {
			b.WriteString(" ...")
		} else {
			for i := p.Min; i < p.Max; i++ {
				fmt.Fprintf(&b, " [arg%d]", i+1)
			}
		}

		for _, k := range p.Keywords {
			fmt.Fprintf(&b, " %s(...)", k)
		}

		if p.Any {
			b.WriteString(" name(...)...")
		}
	}

	if env := cmd.Env(); env != nil {
		switch {
		case cmd.IsEntry():
			b.WriteString(" → enter " + env.Name())
		case cmd.IsExit():
			b.WriteString(" → leave " + env.Name())
		}
	}

	return b.String()
}

// computeMatches ranks the candidates for the word at the cursor.
// Right after a marker or "$" every candidate matches.
func (m model) computeMatches() (matches fuzzy.Matches, wordStart, wordEnd int) {
	input := m.input.Value()

	word, start, end := wordBounds(input, m.input.Position())

	var candidates []string

	switch {
	case m.mode == modeCtrl:
		if word == "" {
			return nil, start, end
		}

		candidates = ctrlCommands

	case kindOf(input, start) == wordCommand:
		candidates = commandNames(m.rt.Top())

	case kindOf(input, start) == wordVariable:
		candidates = kolamain.Names(m.rt)

	default:
		return nil, start, end
	}

	if word == "" {
		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, start, end
	}

	return fuzzy.Find(word, candidates), start, end
}

// refreshMatches recomputes the matches. With autoConfirm, a sole
// candidate equal to the typed word is accepted.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	if m.input.Value()[m.wordStart:m.wordEnd] == m.matches[0].Str {
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

// replaceCurrentWord replaces the current word with replacement and moves
// the cursor after it.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	cursor := m.wordStart + len(replacement)

	m.input.SetValue(input[:m.wordStart] + replacement + input[m.wordEnd:])
	m.input.SetCursor(cursor)

	m.wordEnd = cursor
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// width. Matched characters are highlighted; the selected candidate uses
// the selected style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")

	var (
		b    strings.Builder
		used int
	)

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx)

		w := lipgloss.Width(rendered)
		if i > 0 {
			w += lipgloss.Width(sep)
		}

		if i > 0 && used+w+lipgloss.Width(ellipsis) > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += w
	}

	return b.String()
}

func renderCandidate(match fuzzy.Match, selected bool) string {
	base := suggestionStyle
	highlight := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		base = selectedStyle
		highlight = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	return b.String()
}
