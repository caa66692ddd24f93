package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/agentgate/pkg/config"
)

// Build information, set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// cli carries state shared by the subcommands.
type cli struct {
	configPath string
	lookup     config.LookupFunc
}

// newRootCmd builds the command tree. lookup replaces the process
// environment when non-nil.
func newRootCmd(lookup config.LookupFunc) *cobra.Command {
	c := &cli{lookup: lookup}

	root := &cobra.Command{
		Use:   "agentgate",
		Short: fmt.Sprintf("Agent invocation gateway (version: %s, commit: %s)", version, commit),
		Long: `agentgate authenticates callers with RS256 bearer tokens checked against
the issuer's published key set, then forwards their prompts to an agent
runtime. It optionally exposes the agent's long-term memory to the same
callers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "",
		"Path to a YAML or JSON config file (environment variables take precedence)")

	root.AddCommand(
		newServeCmd(c),
		newCheckConfigCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load() (*Config, error) {
	return loadConfig(c.configPath, c.lookup)
}
