package main

import (
	"os"

	"github.com/meigma/unsign/internal/cli"
)

func main() {
	os.Exit(cli.Run(cli.NewMoveManifestCommand(), os.Args[1:]))
}
