// Package repl implements the interactive KoiLang session of kola.
package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/kolamain"
	"github.com/ardnew/kola/log"
)

// editedMsg carries a buffer accepted in the external editor.
type editedMsg struct{ src string }

// editCancelledMsg is sent when the editor returned an empty buffer or the
// user declined to fix it.
type editCancelledMsg struct{}

// editErrorMsg is sent when the editor could not run.
type editErrorMsg struct{ err error }

const (
	evalPrompt   = "➜ "
	ctrlPrompt   = " :"
	sourceName   = "<repl>"
	defaultWidth = 80
)

func helpMessage() string {
	return `
: Commands (press Esc to toggle mode):

  help     Print this cruft
  list     List the commands reachable from the current environment
  vars     List variables
  edit     Write a block in external $EDITOR and run it
  clear    Clear screen
  quit     Exit REPL

Usage:
  Type a KoiLang line to run it: "#echo hi", "#set n(1)", or plain text
  Commands are completed after the marker and variables after "$"
  Press Tab / Shift-Tab to cycle through candidates
  Press Space to accept the current candidate
  Press Esc to toggle between KoiLang and command modes
  Use Up/Down arrows for history navigation (mode switches automatically)
  Use Shift+Up/Shift+Down for history navigation within current mode only
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	scopeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

// Session configures an interactive session over a runtime.
type Session struct {
	Runtime *klvm.Runtime
	// Output is where the runtime prints. It is drained and echoed after
	// every input.
	Output *bytes.Buffer
	// History is the history file. Empty keeps history in memory.
	History string
	Logger  log.Logger
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc      func() context.Context
	rt           *klvm.Runtime
	out          *bytes.Buffer
	logger       log.Logger
	input        textinput.Model
	history      *History
	historyIdx   int
	matches      fuzzy.Matches // current fuzzy match results
	wordStart    int           // byte offset of current word start
	wordEnd      int           // byte offset of current word end
	suggIdx      int           // selected candidate index
	tabActive    bool          // whether user is tab-cycling
	preTabText   string        // input text before tab-cycling began
	preTabCursor int           // cursor position before tab-cycling began
	width        int           // terminal width for ellipsization
	quitting     bool
	mode         inputMode
	evalText     string
	evalCursor   int
	ctrlText     string
	ctrlCursor   int
	scratch      string // last buffer accepted by the edit command
	err          error  // error that ended the session
}

// Run starts the session. The whole session is one block of the runtime:
// @start runs before the first input and @end after the last.
//
// The session ends on quit, Ctrl+C, Ctrl+D or the exit command; the error
// of the exit command is returned.
func (s Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if s.Runtime == nil {
		return ErrNoRuntime
	}

	if s.Output == nil {
		s.Output = new(bytes.Buffer)
	}

	history := NewHistory(s.History)
	if err := history.Load(); err != nil {
		s.Logger.WarnContext(ctx, "history not loaded",
			slog.String("path", s.History),
			slog.Any("error", err))
	}

	s.Logger.TraceContext(ctx, "repl start",
		slog.String("lang", s.Runtime.Class().Name()),
		slog.Int("history", history.Len()))

	return s.Runtime.ExecBlock(ctx, func(ctx context.Context) error {
		final, err := tea.NewProgram(newModel(ctx, s, history), tea.WithContext(ctx)).Run()
		if err != nil {
			return err
		}

		if m, ok := final.(model); ok {
			return m.err
		}

		return nil
	})
}

func newModel(ctx context.Context, s Session, history *History) model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	m := model{
		ctxFunc:    func() context.Context { return ctx },
		rt:         s.Runtime,
		out:        s.Output,
		logger:     s.Logger,
		input:      ti,
		history:    history,
		historyIdx: history.Len(),
		suggIdx:    -1,
		width:      defaultWidth,
		mode:       modeEval,
	}

	m.input.Prompt = m.prompt()

	return m
}

// prompt shows the active environment in front of the eval prompt.
func (m model) prompt() string {
	if m.mode == modeCtrl {
		return ctrlPromptStyle.Render(ctrlPrompt)
	}

	p := promptStyle.Render(evalPrompt)

	if top := m.rt.Top(); !top.IsRoot() {
		p = scopeStyle.Render(top.Name()) + " " + p
	}

	return p
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - lipgloss.Width(m.input.Prompt) - 2

		return m, nil

	case editedMsg:
		m.scratch = msg.src

		return m.evaluate(msg.src, tea.Println(hintStyle.Render("✔ — running edited block")))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("🗴 — edit cancelled."))

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("🗴 — error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")

	input := m.input.Value()

	switch {
	case m.historyIdx < m.history.Len():
		hint := fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx+1)),
			m.history.Len())
		b.WriteString(hintStyle.Render(hint))

	case strings.TrimSpace(input) == "":
		hint := "Type a KoiLang line or press Esc for commands"
		if m.mode == modeCtrl {
			hint = "Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)"
		}

		b.WriteString(hintStyle.Render(hint))

	case len(m.matches) > 0:
		b.WriteString(renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width))

	case m.mode == modeEval:
		if name, ok := commandAt(input, m.input.Position()); ok {
			if _, cmd, ok := m.rt.Top().Lookup(name); ok {
				b.WriteString(hintStyle.Render(usage(cmd)))
			}
		}
	}

	b.WriteString("\n")

	return b.String()
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctxFunc(), "repl keypress",
		slog.String("key", msg.String()))

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}

		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.historyMove(-1, false), nil

	case tea.KeyDown:
		return m.historyMove(1, false), nil

	case tea.KeyShiftUp:
		return m.historyMove(-1, true), nil

	case tea.KeyShiftDown:
		return m.historyMove(1, true), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			refreshMatches(&m, false)

			return m, nil
		}

		if m.mode == modeEval {
			return m.switchToMode(modeCtrl), nil
		}

		return m.switchToMode(modeEval), nil

	case tea.KeyRunes, tea.KeySpace:
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	var cmd tea.Cmd

	m.tabActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle moves the selected candidate by step and writes it into the input.
func (m model) cycle(step int) model {
	if len(m.matches) == 0 {
		return m
	}

	if len(m.matches) == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	if m.tabActive {
		m.suggIdx = (m.suggIdx + step + len(m.matches)) % len(m.matches)
	} else {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = 0

		if step < 0 {
			m.suggIdx = len(m.matches) - 1
		}
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	m.evalText, m.evalCursor = "", 0
	m.ctrlText, m.ctrlCursor = "", 0
	m.input.SetValue("")
	m.matches = nil

	if err := m.history.Add(input, m.mode); err != nil {
		m.logger.DebugContext(m.ctxFunc(), "history not saved", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		return m.executeCommand(input)
	}

	m.logger.TraceContext(m.ctxFunc(), "repl eval", slog.String("input", input))

	return m.evaluate(input, tea.Println(promptStyle.Render(evalPrompt)+inputStyle.Render(input)))
}

// run executes src inside the session block and returns what the runtime
// printed meanwhile.
func (m *model) run(src string) (string, error) {
	opts := append(m.rt.LexerOptions(), lexer.WithFilename(sourceName))

	err := m.rt.Parse(m.ctxFunc(), lexer.NewString(src, opts...))

	out := strings.TrimSuffix(m.out.String(), "\n")
	m.out.Reset()

	return out, err
}

func (m model) evaluate(src string, echo tea.Cmd) (model, tea.Cmd) {
	out, err := m.run(src)

	cmds := []tea.Cmd{echo}

	if out != "" {
		cmds = append(cmds, tea.Println(resultStyle.Render(out)))
	}

	m.input.Prompt = m.prompt()

	if err != nil {
		if _, ok := kolamain.ExitCode(err); ok {
			m.err, m.quitting = err, true

			return m, tea.Sequence(append(cmds, tea.Quit)...)
		}

		cmds = append(cmds, tea.Println(errorStyle.Render("error: "+err.Error())))
	}

	return m, tea.Sequence(cmds...)
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	parts := strings.Fields(input)
	echo := tea.Println(ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input))

	m.logger.TraceContext(m.ctxFunc(), "repl command", slog.String("command", parts[0]))

	switch parts[0] {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echo, tea.Println(helpMessage()))

	case "l", "list":
		return m, tea.Sequence(echo, tea.Println(m.listCommands()))

	case "v", "vars":
		return m, tea.Sequence(echo, tea.Println(m.listVars()))

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo, m.edit())

	default:
		return m, tea.Println(errorStyle.Render("Unknown command: " + parts[0] + " (try 'help')"))
	}
}

func (m model) edit() tea.Cmd {
	cmd := &editCommand{
		ctxFunc: m.ctxFunc,
		source:  m.scratch,
		opts:    m.rt.LexerOptions(),
		logger:  m.logger,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editCancelledMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.source == "":
			return editCancelledMsg{}
		default:
			return editedMsg{src: cmd.source}
		}
	})
}

func (m model) listCommands() string {
	var b strings.Builder

	for _, name := range commandNames(m.rt.Top()) {
		_, cmd, _ := m.rt.Top().Lookup(name)
		fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(usage(cmd)))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m model) listVars() string {
	var b strings.Builder

	for _, name := range kolamain.Names(m.rt) {
		fmt.Fprintf(&b, "  %s = %s\n", name,
			hintStyle.Render(kolamain.Display(kolamain.Var(m.rt, name))))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// historyMove steps through history by step. Unless sameMode is set, the
// input mode follows the recalled entry.
func (m model) historyMove(step int, sameMode bool) model {
	for i := m.historyIdx + step; i >= 0 && i < m.history.Len(); i += step {
		line, mode, ok := m.history.Entry(i)
		if !ok || (sameMode && mode != m.mode) {
			continue
		}

		if mode != m.mode {
			m = m.switchToMode(mode)
		}

		m.historyIdx = i
		m.input.SetValue(line)
		m.input.SetCursor(len(line))
		refreshMatches(&m, false)

		return m
	}

	if step > 0 && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		refreshMatches(&m, false)
	}

	return m
}

// switchToMode switches to mode, keeping the input of each mode.
func (m model) switchToMode(mode inputMode) model {
	if m.mode == modeEval {
		m.evalText, m.evalCursor = m.input.Value(), m.input.Position()
	} else {
		m.ctrlText, m.ctrlCursor = m.input.Value(), m.input.Position()
	}

	m.mode = mode
	m.input.Prompt = m.prompt()

	if mode == modeEval {
		m.input.SetValue(m.evalText)
		m.input.SetCursor(m.evalCursor)
	} else {
		m.input.SetValue(m.ctrlText)
		m.input.SetCursor(m.ctrlCursor)
	}

	refreshMatches(&m, false)

	return m
}
