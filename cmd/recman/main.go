// Command recman manages records of CUE-declared entities in SQLite or
// Postgres and compiles filter maps to join-aware queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/recman/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
