package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/commands/backends"
	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/commands/index"
	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/commands/version"

	// Register the built-in backends.
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/all"
)

// Commands is the mapping of all available indexqueue commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"backends": func() (cli.Command, error) {
			return &backends.Command{Command: b}, nil
		},
		"index": func() (cli.Command, error) {
			return &index.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
