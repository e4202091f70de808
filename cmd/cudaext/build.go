package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	cudaext "github.com/contriboss/cuda-extension-go"
	"github.com/contriboss/cuda-extension-go/internal/compdb"
)

func buildCmd(opts *options) *cli.Command {
	var (
		destDir       string
		skipToolCheck bool
		writeCompdb   bool
	)

	return &cli.Command{
		Name:  "build",
		Usage: "Compile and link the extension module",
		Flags: withFlags(commonFlags(opts), manifestFlags(opts), []cli.Flag{
			&cli.StringFlag{
				Name:        "dest",
				Aliases:     []string{"o"},
				Usage:       "directory receiving the module (default: build dir)",
				Destination: &destDir,
			},
			&cli.BoolFlag{
				Name:        "skip-tool-check",
				Usage:       "do not look up host tools in PATH before building",
				Destination: &skipToolCheck,
			},
			&cli.BoolFlag{
				Name:        "compdb",
				Usage:       "also write " + compdb.FileName + " to the build dir",
				Destination: &writeCompdb,
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

			config := s.buildConfig(opts, destDir)
			if !skipToolCheck {
				if err := cudaext.CheckBuildTools(s.plan, config); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}

			executor, err := cudaext.NewBuildExecutor(s.toolkit, s.plan, config)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if writeCompdb {
				if err := writeDatabase(executor, filepath.Join(s.cfg.BuildDir, compdb.FileName)); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}

			result, err := executor.Build(ctx)
			if err != nil {
				current, total := executor.Progress()
				s.log.WithFields(logrus.Fields{
					"source": current,
					"total":  total,
				}).Error("Build aborted")
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			_, err = fmt.Fprintln(c.Root().Writer, result.Artifact)
			return err
		},
	}
}

func writeDatabase(executor *cudaext.BuildExecutor, path string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	entries, err := compdb.Generate(executor, wd)
	if err != nil {
		return err
	}
	return compdb.WriteFile(path, entries)
}
