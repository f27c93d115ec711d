package main

import (
	"os"

	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
