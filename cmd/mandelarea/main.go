package main

import (
	"os"

	"github.com/agbru/mandelarea/cmd/mandelarea/commands"
)

func main() {
	os.Exit(commands.Execute())
}
