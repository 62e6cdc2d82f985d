package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Make_DefaultConfiguration(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf)

	if logger.config.level != LevelInfo {
		t.Errorf("expected default level Info, got %v", logger.config.level)
	}
	if logger.config.callsite {
		t.Error("expected callsite disabled by default")
	}
	if logger.config.format != FormatText {
		t.Errorf("expected default format text, got %v", logger.config.format)
	}
}

func TestLogger_Make_WithLevel_FiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithLevel(LevelDebug))

	logger.Debug("debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Error("debug message not logged after setting level to Debug")
	}

	buf.Reset()
	logger.Trace("trace message")
	if buf.Len() > 0 {
		t.Error("trace message logged when level is Debug")
	}

	buf.Reset()
	logger2 := Make(&buf, WithLevel(LevelError))
	logger2.Info("info message")
	if buf.Len() > 0 {
		t.Error("info message logged when level is Error")
	}

	logger2.Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Error("error message not logged at Error level")
	}
}

func TestLogger_Trace_LevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithLevel(LevelTrace), WithTimeLayout("none"))
	logger.Trace("deep")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected level=TRACE, got: %s", buf.String())
	}
}

func TestLogger_Make_WithTimeLayout(t *testing.T) {
	tests := []struct {
		name     string
		layout   string
		contains string
		absent   bool
	}{
		{"rfc3339 named", "RFC3339", "time=", false},
		{"rfc3339 nano named", "RFC3339Nano", ".", false},
		{"none", "none", "time=", true},
		{"empty", "", "time=", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := Make(&buf, WithTimeLayout(tt.layout))
			logger.Info("test")

			got := strings.Contains(buf.String(), tt.contains)
			if got == tt.absent {
				t.Errorf(
					"contains(%q) = %v, output: %s",
					tt.contains,
					got,
					buf.String(),
				)
			}
		})
	}
}

func TestLogger_Make_WithCallsite_IncludesCallsiteInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithCallsite(true))
	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "log_test.go") {
		t.Errorf("callsite info not included when enabled: %s", output)
	}

	buf.Reset()
	logger2 := Make(&buf, WithCallsite(false))
	logger2.Info("test message")

	if strings.Contains(buf.String(), "source") {
		t.Error("callsite info included when disabled")
	}
}

func TestLogger_Make_WithFormat_SetsOutputFormat(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Make(&buf, WithFormat(FormatJSON))
		logger.Info("test message", slog.String("key", "value"))

		var result map[string]any
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse JSON output: %v", err)
		}
		if result["msg"] != "test message" {
			t.Errorf("expected msg=test message, got %v", result["msg"])
		}
		if result["key"] != "value" {
			t.Errorf("expected key=value, got %v", result["key"])
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Make(&buf, WithFormat(FormatText))
		logger.Info("test message", slog.String("key", "value"))

		output := buf.String()
		if !strings.Contains(output, `msg="test message"`) {
			t.Errorf("missing message in text output: %s", output)
		}
		if !strings.Contains(output, "key=value") {
			t.Errorf("missing attribute in text output: %s", output)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Make(&buf, WithPretty(true), WithTimeLayout("none"))
		logger.With(slog.String("env", "scene")).
			WithGroup("cmd").
			Info("entered", slog.Int("depth", 2))

		output := buf.String()
		for _, want := range []string{"INFO", "entered", "env=", "scene", "cmd.depth=", "2"} {
			if !strings.Contains(output, want) {
				t.Errorf("pretty output missing %q: %s", want, output)
			}
		}
	})
}

func TestLogger_Wrap_PreservesConfiguration(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithLevel(LevelWarn), WithFormat(FormatJSON))

	wrapped := logger.Wrap(WithLevel(LevelDebug))
	if wrapped.Level() != LevelDebug {
		t.Errorf("expected wrapped level Debug, got %v", wrapped.Level())
	}
	if wrapped.Format() != FormatJSON {
		t.Errorf("expected wrapped format JSON, got %v", wrapped.Format())
	}
	if logger.Level() != LevelWarn {
		t.Errorf("original logger modified: level %v", logger.Level())
	}
}

func TestLogger_ZeroValue(t *testing.T) {
	var logger Logger

	// Must not panic.
	logger.Info("ignored")
	logger.With(slog.String("k", "v")).Error("ignored")

	if logger.Level() != DefaultLevel {
		t.Errorf("expected default level, got %v", logger.Level())
	}
	if logger.Enabled(context.Background(), LevelError) {
		t.Error("zero logger reports enabled")
	}

	wrapped := logger.Wrap(WithLevel(LevelDebug))
	if wrapped.Logger == nil {
		t.Error("Wrap on zero logger returned zero logger")
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	var buf safeBuffer
	logger := Make(&buf, WithFormat(FormatJSON))

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.With(slog.Int("worker", i)).Info("tick")
		}()
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "\n"); n != 16 {
		t.Errorf("expected 16 lines, got %d", n)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{" info ", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"yaml", DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseFormat(tt.in); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevels_Formats(t *testing.T) {
	var levels []string
	for l := range Levels() {
		levels = append(levels, l)
	}

	if got := strings.Join(levels, ","); got != "trace,debug,info,warn,error" {
		t.Errorf("Levels() = %s", got)
	}

	var formats []string
	for f := range Formats() {
		formats = append(formats, f)
	}

	if got := strings.Join(formats, ","); got != "text,json" {
		t.Errorf("Formats() = %s", got)
	}
}

func TestConfig_DefaultLogger(t *testing.T) {
	saved := Default()
	t.Cleanup(func() { SetDefault(saved) })

	var buf bytes.Buffer
	SetDefault(Make(&buf))
	Config(WithLevel(LevelDebug), WithCallsite(true))

	Debug("from package")

	output := buf.String()
	if !strings.Contains(output, "from package") {
		t.Errorf("package-level Debug not logged: %s", output)
	}
	if !strings.Contains(output, "log_test.go") {
		t.Errorf("package-level callsite not reported: %s", output)
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
