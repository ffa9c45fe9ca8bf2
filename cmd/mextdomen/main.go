package main

import (
	"os"

	"github.com/mextdomen/mextdomen/cmd/mextdomen/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
