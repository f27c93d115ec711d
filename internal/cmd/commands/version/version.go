package version

import (
	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/base"
	iqversion "github.com/hashicorp-forge/hermes-indexqueue/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: indexqueue version`
}

func (c *Command) Run(args []string) int {
	c.UI.Output("indexqueue " + iqversion.String())
	return 0
}
