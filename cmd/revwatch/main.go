package main

import (
	"os"

	"revwatch/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
