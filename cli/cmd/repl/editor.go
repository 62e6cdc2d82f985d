package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/pkg"
)

const defaultEditor = "vi"

// editCommand implements [tea.ExecCommand]. It opens the user's editor on
// a scratch KoiLang buffer and checks its syntax; on error the user is
// asked to edit again. The accepted buffer is left in source.
type editCommand struct {
	ctxFunc func() context.Context
	source  string
	opts    []lexer.Option
	logger  log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// SetStdin sets the stdin reader for the command.
func (c *editCommand) SetStdin(r io.Reader) { c.stdin = r }

// SetStdout sets the stdout writer for the command.
func (c *editCommand) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets the stderr writer for the command.
func (c *editCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit-check-retry loop. An empty buffer clears source.
func (c *editCommand) Run() error {
	ctx := c.ctxFunc()

	f, err := os.CreateTemp(os.TempDir(), pkg.Name+"-repl-*.kola")
	if err != nil {
		return err
	}

	path := f.Name()
	defer os.Remove(path)

	if err := f.Close(); err != nil {
		return err
	}

	content := c.source

	for {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}

		if err := runEditor(ctx, c.stdin, c.stdout, c.stderr, path); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		content = string(data)

		if strings.TrimSpace(content) == "" {
			c.source = ""

			return nil
		}

		serr := check(content, c.opts)

		c.logger.TraceContext(ctx, "editor check",
			slog.Int("length", len(content)),
			slog.Bool("valid", serr == nil))

		if serr == nil {
			c.source = content

			return nil
		}

		_, _ = fmt.Fprintf(c.stderr, "\n%s\n", serr)
		_, _ = fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		sc := bufio.NewScanner(c.stdin)
		if !sc.Scan() {
			return ErrEditDeclined
		}

		if r := strings.ToLower(strings.TrimSpace(sc.Text())); r == "n" || r == "no" {
			return ErrEditDeclined
		}
	}
}

// check lexes src and returns its syntax errors.
func check(src string, opts []lexer.Option) error {
	var errs []error

	for _, err := range lexer.NewString(src, opts...).All() {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// runEditor runs $EDITOR on path.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	return cmd.Run()
}
