package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	opts := &options{}

	return &cli.Command{
		Name:  "cudaext",
		Usage: "Build interpreter extension modules from mixed GPU and host sources",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			locateCmd(opts),
			planCmd(opts),
			buildCmd(opts),
			compdbCmd(opts),
		},
	}
}
