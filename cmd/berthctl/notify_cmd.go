package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"

	"github.com/berth-deploy/berth/pkg/event"
)

type notifyOpts struct {
	*rootOpts
	file string
}

func newNotify(parent *rootOpts) *notifyOpts {
	return &notifyOpts{rootOpts: parent}
}

func (opts *notifyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a repository event to the daemon, as a webhook would.",
		Example: makeExample(
			"berthctl notify --file=push-event.json",
			"cat push-event.json | berthctl notify",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "File containing the event JSON; - or empty reads stdin")
	return cmd
}

func (opts *notifyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	var (
		raw []byte
		err error
	)
	if opts.file == "" || opts.file == "-" {
		raw, err = ioutil.ReadAll(os.Stdin)
	} else {
		raw, err = ioutil.ReadFile(opts.file)
	}
	if err != nil {
		return err
	}

	var ev event.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return newUsageError(fmt.Sprintf("could not parse event JSON: %s", err))
	}
	if ev.Type == "" {
		return newUsageError(`event is missing "type"`)
	}

	deployments, err := opts.API.NotifyEvent(context.Background(), ev)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(deployments) == 0 {
		fmt.Fprintf(out, "event accepted, no rules matched: %s %s\n", ev.Type, ev.RepoFullName)
		return nil
	}
	for _, d := range deployments {
		fmt.Fprintf(out, "deployment %s queued for service %s (%s)\n", d.ID, d.ServiceID, d.Env)
	}
	return nil
}
