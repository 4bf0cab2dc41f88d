// Package main provides the seqneck CLI for building and inspecting sequence
// necks.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
