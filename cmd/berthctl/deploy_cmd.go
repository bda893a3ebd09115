package main

import (
	"context"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/berth-deploy/berth/pkg/api"
	"github.com/berth-deploy/berth/pkg/deploy"
)

type deployOpts struct {
	*rootOpts
	service     string
	environment string
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Queue a deployment of one service.",
		Example: makeExample("berthctl deploy --service=svc-api --environment=staging"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.service, "service", "s", "", "Service to deploy")
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "production", "Environment to deploy to")
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.service == "" {
		return newUsageError("please supply --service")
	}

	requestedBy := ""
	if u, err := user.Current(); err == nil {
		requestedBy = u.Username
	}

	dep, err := opts.API.Deploy(context.Background(), api.DeployRequest{
		ServiceID:   opts.service,
		Environment: deploy.Environment(opts.environment),
		RequestedBy: requestedBy,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deployment %s queued for service %s (%s)\n", dep.ID, dep.ServiceID, dep.Env)
	fmt.Fprintf(cmd.OutOrStdout(), "follow it with: berthctl status --deployment=%s\n", dep.ID)
	return nil
}
