package main

import (
	"os"

	"github.com/meigma/unsign/internal/cli"
)

func main() {
	os.Exit(cli.Run(cli.NewUnsignCommand(), os.Args[1:]))
}
