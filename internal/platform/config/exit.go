package config

import (
	"fmt"
	"io"
	"os"
)

var (
	exitOut  io.Writer = os.Stderr
	exitFunc           = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// CLI entry points use it for unrecoverable startup failures.
func Exitf(format string, args ...any) {
	fmt.Fprintf(exitOut, format+"\n", args...)
	exitFunc(1)
}
