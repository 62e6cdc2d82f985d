package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type outputKey struct{}

type output struct{ out, errOut io.Writer }

// WithOutput returns a new context.Context whose commands write their
// output to out and their diagnostics to errOut.
func WithOutput(ctx context.Context, out, errOut io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, output{out, errOut})
}

// outputFrom returns the writers stored by [WithOutput], or os.Stdout and
// os.Stderr.
func outputFrom(ctx context.Context) (out, errOut io.Writer) {
	o, _ := ctx.Value(outputKey{}).(output)

	out, errOut = o.out, o.errOut
	if out == nil {
		out = os.Stdout
	}

	if errOut == nil {
		errOut = os.Stderr
	}

	return out, errOut
}

// Source is one input file. Name is used in error positions.
type Source struct {
	Name string
	Path string // empty for stdin
}

// Open returns a reader for s.
func (s Source) Open() (io.ReadCloser, error) {
	if s.Path == "" {
		return io.NopCloser(os.Stdin), nil
	}

	return os.Open(s.Path)
}

// IsStdin reports whether s reads from stdin.
func (s Source) IsStdin() bool { return s.Path == "" }

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// stdinName is the display name of stdin in error positions.
const stdinName = "<stdin>"

// Sources resolves the given paths to the list of inputs to read.
//
// Directories are searched for KoiLang files (see [Discover]). Duplicates
// are removed by resolving symlinks and comparing device/inode pairs. All
// occurrences of "-" are replaced with a single stdin source placed last so
// it reads after all regular files.
func Sources(paths []string) ([]Source, error) {
	var (
		srcs     []Source
		hasStdin bool
	)

	seen := make(map[fileKey]struct{})

	stdinInfo, _ := os.Stdin.Stat()
	stdinKey, _ := makeFileKey(stdinInfo)

	add := func(path string) error {
		src, key, err := uniqueFile(path, seen)
		if err != nil {
			return ErrSource.Wrap(err)
		}

		if key == stdinKey && stdinInfo != nil {
			hasStdin = true

			return nil
		}

		if src.Path != "" {
			srcs = append(srcs, src)
		}

		return nil
	}

	for _, path := range paths {
		if path == stdinSource {
			hasStdin = true

			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, ErrSource.Wrap(err)
		}

		if !info.IsDir() {
			if err := add(path); err != nil {
				return nil, err
			}

			continue
		}

		files, err := Discover(path)
		if err != nil {
			return nil, ErrSource.Wrap(err)
		}

		for _, file := range files {
			if err := add(file); err != nil {
				return nil, err
			}
		}
	}

	if hasStdin {
		srcs = append(srcs, Source{Name: stdinName})
	}

	return srcs, nil
}

// uniqueFile resolves path and records its device/inode in seen. The
// returned Source is empty if the file was already seen.
func uniqueFile(path string, seen map[fileKey]struct{}) (Source, fileKey, error) {
	// Resolve to absolute path to handle relative path duplicates.
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fileKey{}, err
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return Source{}, fileKey{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Source{}, fileKey{}, err
	}

	key, ok := makeFileKey(info)
	if !ok {
		return Source{Name: path, Path: resolved}, key, nil
	}

	if _, exists := seen[key]; exists {
		return Source{}, key, nil
	}

	seen[key] = struct{}{}

	return Source{Name: path, Path: resolved}, key, nil
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	if info == nil {
		return key, false
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true //nolint:unconvert
}
