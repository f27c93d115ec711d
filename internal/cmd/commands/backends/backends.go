package backends

import (
	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

type Command struct {
	*base.Command

	// Registry defaults to backend.DefaultRegistry.
	Registry *backend.Registry
}

func (c *Command) Synopsis() string {
	return "List the available index backends"
}

func (c *Command) Help() string {
	return `Usage: indexqueue backends

  This command lists the index backends that can be selected with the
  worker.backend setting.`
}

func (c *Command) Run(args []string) int {
	r := c.Registry
	if r == nil {
		r = backend.DefaultRegistry
	}

	for _, name := range r.Names() {
		if name == backend.DefaultBackend {
			c.UI.Output(name + " (default)")
			continue
		}
		c.UI.Output(name)
	}
	return 0
}
