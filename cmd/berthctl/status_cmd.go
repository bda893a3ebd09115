package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
	deployment string
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the status and phase of a deployment.",
		Example: makeExample("berthctl status --deployment=4f2c9a1b"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.deployment, "deployment", "d", "", "Deployment id to query")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.deployment == "" {
		return newUsageError("please supply --deployment")
	}

	dep, err := opts.API.DeploymentStatus(context.Background(), opts.deployment)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deployment:  %s\n", dep.ID)
	fmt.Fprintf(out, "Service:     %s\n", dep.ServiceID)
	fmt.Fprintf(out, "Environment: %s\n", dep.Env)
	fmt.Fprintf(out, "Status:      %s\n", dep.Status)
	fmt.Fprintf(out, "Phase:       %s (updated %s)\n", dep.Phase, dep.PhaseUpdatedAt.Format("2006-01-02 15:04:05"))
	if dep.ContainerName != "" {
		fmt.Fprintf(out, "Container:   %s (%s)\n", dep.ContainerName, dep.ContainerImage)
	}
	if dep.URL != "" {
		fmt.Fprintf(out, "URL:         %s\n", dep.URL)
	}
	if dep.Error != "" {
		fmt.Fprintf(out, "Error:       %s\n", dep.Error)
	}
	return nil
}
