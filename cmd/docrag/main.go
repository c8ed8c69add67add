// Package main provides the entry point for the docrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docrag/cmd/docrag/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
