package cmd

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Extension is the file name extension of KoiLang sources.
const Extension = ".kola"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"testdata":     {},
}

// Discover returns the KoiLang files under root, sorted. Hidden entries,
// symlinks and paths matched by root's .gitignore are skipped.
func Discover(root string) ([]string, error) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		gi = nil
	}

	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		name := d.Name()

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") ||
				gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 ||
			filepath.Ext(name) != Extension {
			return nil
		}

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}
