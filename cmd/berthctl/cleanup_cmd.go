package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type cleanupOpts struct {
	*rootOpts
	service string
	preview bool
	all     bool
}

func newCleanup(parent *rootOpts) *cleanupOpts {
	return &cleanupOpts{rootOpts: parent}
}

func (opts *cleanupOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply retention to a service's old deployments.",
		Example: makeExample(
			"berthctl cleanup --service=svc-api --preview",
			"berthctl cleanup --service=svc-api",
			"berthctl cleanup --all",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.service, "service", "s", "", "Service to clean up")
	cmd.Flags().BoolVarP(&opts.preview, "preview", "p", false, "Show what would be deleted without deleting anything")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Clean up every service")
	return cmd
}

func (opts *cleanupOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	out := cmd.OutOrStdout()
	ctx := context.Background()

	switch {
	case opts.all:
		if opts.preview {
			return newUsageError("--preview applies to a single --service")
		}
		results, err := opts.API.CleanupAll(ctx)
		if err != nil {
			return err
		}
		w := newTabwriter()
		fmt.Fprintf(w, "SERVICE\tDELETED\tKEPT\tMESSAGE\n")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.ServiceID, r.DeletedCount, r.KeptCount, r.Message)
		}
		w.Flush()
		return nil

	case opts.service == "":
		return newUsageError("please supply --service or --all")

	case opts.preview:
		preview, err := opts.API.PreviewCleanup(ctx, opts.service)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "would delete %d deployments, keep %d\n", preview.WillDelete, preview.WillKeep)
		for _, id := range preview.DeploymentsToDelete {
			fmt.Fprintf(out, "  delete %s\n", id)
		}
		return nil

	default:
		result, err := opts.API.CleanupService(ctx, opts.service)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, result.Message)
		return nil
	}
}
