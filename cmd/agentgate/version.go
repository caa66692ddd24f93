package main

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "agentgate %s (commit %s, %s %s/%s)\n",
				version, commit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
			return err
		},
	}
}
