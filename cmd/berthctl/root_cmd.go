package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-deploy/berth/pkg/api"
	transport "github.com/berth-deploy/berth/pkg/http"
	"github.com/berth-deploy/berth/pkg/http/client"
)

const (
	EnvVariableURL   = "BERTH_URL"
	EnvVariableToken = "BERTH_SERVICE_TOKEN"
)

type rootOpts struct {
	URL   string
	Token string
	API   api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
berthctl talks to the berth deployment daemon.

Workflow:
  berthctl list-services                      # Which services are configured?
  berthctl deploy --service=svc-api           # Deploy one now.
  berthctl status --deployment=<id>           # How did it go?
  berthctl cleanup --service=svc-api --preview # What would retention delete?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "berthctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3040",
		fmt.Sprintf("base URL of the berthd API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().StringVarP(&opts.Token, "token", "t", "",
		fmt.Sprintf("service token; you can also set the environment variable %s", EnvVariableToken))

	cmd.AddCommand(
		newVersionCommand(),
		newServiceList(opts).Command(),
		newDeploy(opts).Command(),
		newStatus(opts).Command(),
		newDeploymentList(opts).Command(),
		newCleanup(opts).Command(),
		newNotify(opts).Command(),
		newTemplateValidate().Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	token := os.Getenv(EnvVariableToken)
	if cmd.Flags().Changed("token") || token == "" {
		token = opts.Token
	}

	opts.API = client.New(http.DefaultClient, transport.NewAPIRouter(), url, client.Token(token))
	return nil
}
