package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	cudaext "github.com/contriboss/cuda-extension-go"
	"github.com/contriboss/cuda-extension-go/internal/compdb"
)

func compdbCmd(opts *options) *cli.Command {
	var output string

	return &cli.Command{
		Name:  "compdb",
		Usage: "Write " + compdb.FileName + " for editor and linter tooling",
		Flags: withFlags(commonFlags(opts), manifestFlags(opts), []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Usage:       "database path",
				Value:       compdb.FileName,
				Destination: &output,
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
			if err := writeDatabase(executor, output); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			s.log.WithField("path", output).Info("Compilation database written")
			return nil
		},
	}
}
