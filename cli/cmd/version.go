package cmd

import (
	"context"
	"fmt"

	"github.com/ardnew/kola/pkg"
)

// Version prints the version of kola.
type Version struct{}

// Run executes the version command.
func (*Version) Run(ctx context.Context) error {
	out, _ := outputFrom(ctx)

	_, err := fmt.Fprintf(out, "%s %s\n", pkg.Name, pkg.Version())

	return err
}
