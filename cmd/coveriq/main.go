// Command coveriq is the CoverIQ-Intelligence entry point: API server,
// extraction worker, migrations, and workbook import/export in one binary.
package main

import (
	"fmt"
	"os"

	"github.com/turtacn/CoverIQ-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
