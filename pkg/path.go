package pkg

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Prefix returns the base name of the executable, used to name the
// configuration and cache directories and as the prefix of environment
// variables (see [Getenv]).
//
// Builds of the dlv debugger ("__debug_bin123") map to [Name], and leading
// dots are removed.
//
//nolint:gochecknoglobals
var Prefix = sync.OnceValue(
	func() string {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}

		base := filepath.Base(exe)
		base = strings.TrimSuffix(base, filepath.Ext(base))

		if debugBin.MatchString(base) {
			return Name
		}

		return strings.TrimLeft(base, ".")
	},
)

var debugBin = regexp.MustCompile(`^__debug_bin\d+$`)

// Getenv returns the environment variable key qualified by [Prefix]:
// Getenv("CONFIG_DIR") reads KOLA_CONFIG_DIR for the kola executable.
func Getenv(key string) string {
	p := strings.ToUpper(strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}

		return r
	}, Prefix()))

	return os.Getenv(p + "_" + key)
}

// userDir returns the directory named by the environment variable
// <PREFIX>_<key>, or the Prefix subdirectory of the directory returned by
// base. If base fails, hidden is tried below the home directory and then
// below the working directory.
func userDir(key string, base func() (string, error), hidden string) string {
	if dir := Getenv(key); dir != "" {
		return dir
	}

	dir, err := base()
	if err != nil {
		dir = hidden

		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, hidden)
		}
	}

	return filepath.Join(dir, Prefix())
}

// ConfigDir returns the configuration directory path.
//
//nolint:gochecknoglobals
var ConfigDir = sync.OnceValue(func() string {
	return userDir("CONFIG_DIR", os.UserConfigDir, ".config")
})

// CacheDir returns the cache directory path used for transient files.
//
//nolint:gochecknoglobals
var CacheDir = sync.OnceValue(func() string {
	return userDir("CACHE_DIR", os.UserCacheDir, ".cache")
})
