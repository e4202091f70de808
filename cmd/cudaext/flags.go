package main

import (
	"github.com/urfave/cli/v3"

	"github.com/contriboss/cuda-extension-go/internal/manifest"
)

// options holds the flag values shared by all commands.
type options struct {
	configFile   string
	overrideEnv  string
	logLevel     string
	logFormat    string
	manifestPath string
	extension    string
	buildDir     string
	hostCompiler string
	python       string
	verbose      bool
}

func commonFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &opts.configFile,
		},
		&cli.StringFlag{
			Name:        "override-env",
			Usage:       "environment variable naming the toolkit home",
			Destination: &opts.overrideEnv,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Destination: &opts.logFormat,
		},
	}
}

func manifestFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "manifest",
			Aliases:     []string{"f"},
			Usage:       "path to the build manifest",
			Value:       manifest.DefaultFile,
			Destination: &opts.manifestPath,
		},
		&cli.StringFlag{
			Name:        "extension",
			Aliases:     []string{"e"},
			Usage:       "extension block to build (default: the single enabled one)",
			Destination: &opts.extension,
		},
		&cli.StringFlag{
			Name:        "build-dir",
			Aliases:     []string{"b"},
			Usage:       "directory for intermediate files",
			Destination: &opts.buildDir,
		},
		&cli.StringFlag{
			Name:        "host-compiler",
			Aliases:     []string{"cxx"},
			Usage:       "host compiler and linker (default: $CXX or c++)",
			Destination: &opts.hostCompiler,
		},
		&cli.StringFlag{
			Name:        "python",
			Usage:       "python interpreter to probe for headers and suffix",
			Destination: &opts.python,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "stream compiler output and record command lines",
			Destination: &opts.verbose,
		},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, group := range groups {
		flags = append(flags, group...)
	}
	return flags
}
