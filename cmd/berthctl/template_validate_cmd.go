package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/berth-deploy/berth/pkg/template"
)

// templateValidateOpts has no rootOpts: validation is purely local and
// works without a reachable daemon.
type templateValidateOpts struct {
	file string
}

func newTemplateValidate() *templateValidateOpts {
	return &templateValidateOpts{}
}

func (opts *templateValidateOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-template [template...]",
		Short: "Validate variable templates without contacting the daemon.",
		Example: makeExample(
			`berthctl validate-template '${services.api.domain}:${services.api.port}'`,
			"berthctl validate-template --file=variables.yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML file mapping variable names to templates; enables cycle detection")
	return cmd
}

func (opts *templateValidateOpts) RunE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if opts.file != "" {
		raw, err := ioutil.ReadFile(opts.file)
		if err != nil {
			return err
		}
		var templates map[string]string
		if err := yaml.Unmarshal(raw, &templates); err != nil {
			return newUsageError(fmt.Sprintf("could not parse %s: %s", opts.file, err))
		}

		names := make([]string, 0, len(templates))
		for name := range templates {
			names = append(names, name)
		}
		sort.Strings(names)

		bad := false
		for _, name := range names {
			if !printValidation(out, name, templates[name]) {
				bad = true
			}
		}

		cycles := template.DetectCircularReferences(templates)
		for _, cycle := range cycles.Cycles {
			bad = true
			fmt.Fprintf(out, "cycle: ")
			for i, name := range cycle {
				if i > 0 {
					fmt.Fprintf(out, " -> ")
				}
				fmt.Fprintf(out, "%s", name)
			}
			fmt.Fprintf(out, " -> %s\n", cycle[0])
		}

		if bad {
			return fmt.Errorf("validation failed")
		}
		fmt.Fprintf(out, "%d templates OK\n", len(templates))
		return nil
	}

	if len(args) == 0 {
		return newUsageError("please supply templates as arguments, or --file")
	}
	bad := false
	for i, tpl := range args {
		if !printValidation(out, fmt.Sprintf("arg %d", i+1), tpl) {
			bad = true
		}
	}
	if bad {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintf(out, "%d templates OK\n", len(args))
	return nil
}

func printValidation(out io.Writer, name, tpl string) bool {
	result := template.Validate(tpl)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "%s: error at %d: %s\n", name, e.Position, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "%s: warning at %d: %s\n", name, w.Position, w.Message)
	}
	return result.Valid
}
