package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	cudaext "github.com/contriboss/cuda-extension-go"
)

type sourceView struct {
	Path string `json:"path" yaml:"path"`
	Kind string `json:"kind" yaml:"kind"`
}

// planView is the printable form of a BuildPlan and its commands.
type planView struct {
	Name        string       `json:"name" yaml:"name"`
	Artifact    string       `json:"artifact" yaml:"artifact"`
	Sources     []sourceView `json:"sources" yaml:"sources"`
	IncludeDirs []string     `json:"include_dirs" yaml:"include_dirs"`
	Libraries   []string     `json:"libraries" yaml:"libraries"`
	LibraryDirs []string     `json:"library_dirs" yaml:"library_dirs"`
	HostArgs    []string     `json:"host_args" yaml:"host_args"`
	DeviceArgs  []string     `json:"device_args" yaml:"device_args"`
	LinkArgs    []string     `json:"link_args,omitempty" yaml:"link_args,omitempty"`
	Commands    []string     `json:"commands" yaml:"commands"`
}

func newPlanView(executor *cudaext.BuildExecutor) (planView, error) {
	plan := executor.Plan()
	commands, err := executor.Commands()
	if err != nil {
		return planView{}, err
	}

	view := planView{
		Name:        plan.Name(),
		Artifact:    executor.ArtifactPath(),
		IncludeDirs: plan.IncludeDirs(),
		Libraries:   plan.Libraries(),
		LibraryDirs: plan.LibraryDirs(),
		HostArgs:    plan.BackendArgs(cudaext.BackendHost),
		DeviceArgs:  plan.BackendArgs(cudaext.BackendDevice),
		LinkArgs:    plan.LinkArgs(),
	}
	for _, src := range plan.Sources() {
		view.Sources = append(view.Sources, sourceView{Path: src.Path, Kind: src.Kind.String()})
	}
	for _, inv := range commands {
		view.Commands = append(view.Commands, inv.CommandLine())
	}
	return view, nil
}

func writePlan(w io.Writer, view planView, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		fmt.Fprintf(w, "extension: %s\n", view.Name)
		fmt.Fprintf(w, "artifact:  %s\n", view.Artifact)
		fmt.Fprintln(w, "sources:")
		for _, src := range view.Sources {
			fmt.Fprintf(w, "  %-8s %s\n", src.Kind, src.Path)
		}
		fmt.Fprintln(w, "commands:")
		for _, cmd := range view.Commands {
			fmt.Fprintf(w, "  %s\n", cmd)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func planCmd(opts *options) *cli.Command {
	var format string

	return &cli.Command{
		Name:  "plan",
		Usage: "Print the build plan and the commands a build would run",
		Flags: withFlags(commonFlags(opts), manifestFlags(opts), []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json, yaml)",
				Value:       "text",
				Destination: &format,
			},
		}),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, s, err := openSession(ctx, c, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := s.loadPlan(ctx, opts); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			executor, err := cudaext.NewBuildExecutor(s.toolkit, s.plan, s.buildConfig(opts, ""))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			view, err := newPlanView(executor)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := writePlan(c.Root().Writer, view, format); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}
