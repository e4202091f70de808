package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

type toolkitView struct {
	Home     string `json:"home"`
	Compiler string `json:"compiler"`
	Include  string `json:"include"`
	Lib      string `json:"lib"`
}

func locateCmd(opts *options) *cli.Command {
	var format string

	return &cli.Command{
		Name:  "locate",
		Usage: "Locate and validate the GPU toolkit",
		Flags: withFlags(commonFlags(opts), []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &format,
			},
		}),
		Action: func(ctx context.Context, c *cli.Command) error {
			_, s, err := openSession(ctx, c, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			view := toolkitView{
				Home:     s.toolkit.Home(),
				Compiler: s.toolkit.DeviceCompiler(),
				Include:  s.toolkit.IncludeDir(),
				Lib:      s.toolkit.LibDir(),
			}
			w := c.Root().Writer

			switch format {
			case "json":
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, string(data))
				return err
			case "text":
				fmt.Fprintf(w, "home:     %s\n", view.Home)
				fmt.Fprintf(w, "compiler: %s\n", view.Compiler)
				fmt.Fprintf(w, "include:  %s\n", view.Include)
				fmt.Fprintf(w, "lib:      %s\n", view.Lib)
				return nil
			default:
				return cli.Exit(fmt.Sprintf("error: unknown format %q", format), 1)
			}
		},
	}
}
