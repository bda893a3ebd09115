package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type serviceListOpts struct {
	*rootOpts
}

func newServiceList(parent *rootOpts) *serviceListOpts {
	return &serviceListOpts{rootOpts: parent}
}

func (opts *serviceListOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "list-services",
		Short:   "List services the daemon can deploy.",
		Example: makeExample("berthctl list-services"),
		RunE:    opts.RunE,
	}
}

func (opts *serviceListOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	services, err := opts.API.ListServices(context.Background())
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "SERVICE\tNAME\tPROJECT\tPROVIDER\tSTRATEGY\tDOMAIN\n")
	for _, svc := range services {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			svc.ID, svc.Name, svc.ProjectID, svc.Provider, svc.Builder, svc.Domain)
	}
	w.Flush()
	return nil
}
