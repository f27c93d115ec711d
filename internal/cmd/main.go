package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/hermes-indexqueue/internal/version"
)

// EnvLogLevel sets the initial log level. Commands may lower or raise it from
// their configuration.
const EnvLogLevel = "INDEXQUEUE_LOG_LEVEL"

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	cliName := filepath.Base(args[0])
	log := newLogger(cliName)

	if len(args) == 2 && isVersionFlag(args[1]) {
		args = []string{cliName, "version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	initCommands(log, ui)

	c := &cli.CLI{
		Name:     cliName,
		Args:     args[1:],
		Version:  version.String(),
		Commands: Commands,
		HelpFunc: cli.BasicHelpFunc(cliName),
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(fmt.Sprintf("error running %s: %v", cliName, err))
		return 1
	}

	return exitCode
}

// newLogger writes to stderr so that operation output on stdout stays
// parseable.
func newLogger(name string) hclog.Logger {
	level := hclog.Info
	if lvl := hclog.LevelFromString(os.Getenv(EnvLogLevel)); lvl != hclog.NoLevel {
		level = lvl
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
}

func isVersionFlag(arg string) bool {
	switch arg {
	case "-v", "-version", "--version":
		return true
	}
	return false
}
