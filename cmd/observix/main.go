// observix is the command line client for the Observix control plane.
package main

import (
	"os"

	"github.com/observix/observix/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
