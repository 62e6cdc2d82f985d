package cmd

import "github.com/ardnew/kola/pkg"

// Errors returned by commands.
var (
	ErrSource      = pkg.NewResourceError("read source")
	ErrNoSource    = pkg.NewResourceError("no source files found")
	ErrWriteConfig = pkg.NewResourceError("write configuration file")
	ErrFileExists  = pkg.NewError("file exists (use --force to overwrite)")
)
