package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type deploymentListOpts struct {
	*rootOpts
	service string
}

func newDeploymentList(parent *rootOpts) *deploymentListOpts {
	return &deploymentListOpts{rootOpts: parent}
}

func (opts *deploymentListOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list-deployments",
		Short:   "List a service's deployments, newest first.",
		Example: makeExample("berthctl list-deployments --service=svc-api"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.service, "service", "s", "", "Service whose deployments to list")
	return cmd
}

func (opts *deploymentListOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.service == "" {
		return newUsageError("please supply --service")
	}

	deployments, err := opts.API.ListDeployments(context.Background(), opts.service)
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "DEPLOYMENT\tSTATUS\tPHASE\tENVIRONMENT\tCREATED\tCONTAINER\n")
	for _, d := range deployments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Status, d.Phase, d.Env, d.CreatedAt.Format("2006-01-02 15:04:05"), d.ContainerName)
	}
	w.Flush()
	return nil
}
