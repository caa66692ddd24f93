package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd(c *cli) *cobra.Command {
	var listEnv bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration without starting the server",
		Long: `Loads the configuration file and environment exactly as "serve" does and
reports whether it is valid. Nothing is dialed. With --env, prints the name
of every environment variable agentgate reads instead.`,
		Example: `  # Validate the file plus the current environment
  agentgate check-config --config agentgate.yaml

  # List all recognized environment variables
  agentgate check-config --env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if listEnv {
				for _, key := range newLoader("", nil).EnvKeys(Config{}) {
					fmt.Fprintln(out, key)
				}
				return nil
			}

			cfg, err := c.load()
			if err != nil {
				return fmt.Errorf("configuration is invalid: %w", err)
			}
			fmt.Fprintln(out, "Configuration is valid.")
			fmt.Fprintf(out, "  listen:   %s\n", cfg.Server.Address)
			fmt.Fprintf(out, "  issuer:   %s\n", cfg.Auth.Issuer())
			fmt.Fprintf(out, "  jwks:     %s\n", cfg.Auth.KeySetURL())
			fmt.Fprintf(out, "  runtime:  %s\n", cfg.Runtime.InvocationURL())
			if cfg.Memory.Enabled {
				fmt.Fprintf(out, "  memory:   %s (catalog %s, collection %s, cache %t)\n",
					cfg.Memory.ID, cfg.Memory.Catalog, cfg.Memory.Collection, cfg.Memory.CacheEnabled)
			} else {
				fmt.Fprintln(out, "  memory:   disabled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listEnv, "env", false, "List recognized environment variables and exit")
	return cmd
}
