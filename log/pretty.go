package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the styles used by the pretty text handler.
type palette struct {
	key, str, num, ok, bad, dur, tim lipgloss.Style
	trace, debug, info, warn, err    lipgloss.Style
}

func makePalette(r *lipgloss.Renderer) palette {
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}

	return palette{
		key:   fg("8"),
		str:   fg("6"),
		num:   fg("3"),
		ok:    fg("2"),
		bad:   fg("1"),
		dur:   fg("5"),
		tim:   fg("4"),
		trace: fg("8"),
		debug: fg("4"),
		info:  fg("2").Bold(true),
		warn:  fg("3").Bold(true),
		err:   fg("1").Bold(true),
	}
}

// prettyHandler implements a colorized text handler for log messages.
type prettyHandler struct {
	opts       slog.HandlerOptions
	formatTime FormatTime
	style      palette
	mu         *sync.Mutex
	w          io.Writer
	prefix     string // group qualifier for attribute keys
	attrs      []byte // preformatted attributes from WithAttrs
}

func newPrettyHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
) *prettyHandler {
	return &prettyHandler{
		opts:       *opts,
		formatTime: formatTime,
		style:      makePalette(lipgloss.NewRenderer(w)),
		mu:         &sync.Mutex{},
		w:          w,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.opts.Level != nil {
		floor = h.opts.Level.Level()
	}

	return level >= floor
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	if !r.Time.IsZero() && h.formatTime != nil {
		if ts := h.formatTime(r.Time); ts != "" {
			buf.WriteString(h.style.tim.Render(ts))
		}
	}

	h.space(buf)
	buf.WriteString(h.levelStyle(r.Level).Render(
		fmt.Sprintf("%-5s", strings.ToUpper(Level(r.Level).String())),
	))

	if h.opts.AddSource {
		if src := r.Source(); src != nil && src.File != "" {
			h.space(buf)
			buf.WriteString(h.style.key.Render(
				src.File + ":" + strconv.Itoa(src.Line),
			))
		}
	}

	h.space(buf)
	buf.WriteString(r.Message)

	buf.Write(h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(buf, h.prefix, a)

		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	buf := bytes.NewBuffer(append([]byte(nil), h.attrs...))
	for _, a := range attrs {
		h.writeAttr(buf, h.prefix, a)
	}

	c := *h
	c.attrs = buf.Bytes()

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

func (h *prettyHandler) space(buf *bytes.Buffer) {
	if buf.Len() > 0 {
		buf.WriteByte(' ')
	}
}

func (h *prettyHandler) levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return h.style.err
	case level >= slog.LevelWarn:
		return h.style.warn
	case level >= slog.LevelInfo:
		return h.style.info
	case level >= slog.LevelDebug:
		return h.style.debug
	default:
		return h.style.trace
	}
}

func (h *prettyHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()

	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return
		}

		if a.Key != "" {
			prefix += a.Key + "."
		}

		for _, ga := range group {
			h.writeAttr(buf, prefix, ga)
		}

		return
	}

	buf.WriteByte(' ')
	buf.WriteString(h.style.key.Render(prefix + a.Key + "="))
	buf.WriteString(h.renderValue(a.Value))
}

func (h *prettyHandler) renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"=") {
			s = strconv.Quote(s)
		}

		return h.style.str.Render(s)

	case slog.KindInt64:
		return h.style.num.Render(strconv.FormatInt(v.Int64(), 10))

	case slog.KindUint64:
		return h.style.num.Render(strconv.FormatUint(v.Uint64(), 10))

	case slog.KindFloat64:
		return h.style.num.Render(strconv.FormatFloat(v.Float64(), 'g', -1, 64))

	case slog.KindBool:
		if v.Bool() {
			return h.style.ok.Render("true")
		}

		return h.style.bad.Render("false")

	case slog.KindDuration:
		return h.style.dur.Render(v.Duration().String())

	case slog.KindTime:
		if h.formatTime != nil {
			if ts := h.formatTime(v.Time()); ts != "" {
				return h.style.tim.Render(ts)
			}
		}

		return h.style.tim.Render(v.Time().String())

	default:
		if err, ok := v.Any().(error); ok {
			return h.style.bad.Render(strconv.Quote(err.Error()))
		}

		return h.style.str.Render(v.String())
	}
}
