package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	cudaext "github.com/contriboss/cuda-extension-go"
	"github.com/contriboss/cuda-extension-go/internal/config"
	"github.com/contriboss/cuda-extension-go/internal/logger"
	"github.com/contriboss/cuda-extension-go/internal/manifest"
	"github.com/contriboss/cuda-extension-go/internal/pyenv"
)

// session is the state a command builds up before acting.
type session struct {
	cfg     config.Config
	log     *logrus.Logger
	toolkit *cudaext.ToolkitConfig
	python  *pyenv.Interpreter
	ext     *manifest.Extension
	plan    *cudaext.BuildPlan
}

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(c *cli.Command, opts *options) (config.Config, error) {
	path := opts.configFile
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if c.IsSet("override-env") {
		cfg.OverrideEnv = opts.overrideEnv
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if c.IsSet("build-dir") {
		cfg.BuildDir = opts.buildDir
	}
	if c.IsSet("host-compiler") {
		cfg.HostCompiler = opts.hostCompiler
	}
	if c.IsSet("python") {
		cfg.Python = opts.python
	}
	return cfg, nil
}

// openSession loads the configuration and locates the toolkit.
func openSession(ctx context.Context, c *cli.Command, opts *options) (context.Context, *session, error) {
	cfg, err := loadConfig(c, opts)
	if err != nil {
		return ctx, nil, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return ctx, nil, err
	}
	ctx = logger.WithContext(ctx, log)

	toolkit, err := cudaext.Locate(cfg.LocateOptions())
	if err != nil {
		return ctx, nil, err
	}
	log.WithFields(logrus.Fields{
		"home":     toolkit.Home(),
		"compiler": toolkit.DeviceCompiler(),
	}).Debug("Toolkit located")

	return ctx, &session{cfg: cfg, log: log, toolkit: toolkit}, nil
}

// loadPlan probes the interpreter, reads the manifest and builds the plan.
//
// A failed interpreter probe is logged and the manifest sees empty python.*
// values.
func (s *session) loadPlan(ctx context.Context, opts *options) error {
	python, err := pyenv.Probe(ctx, s.cfg.Python)
	if err != nil {
		s.log.WithError(err).Warn("Python interpreter probe failed; python.* manifest values are empty")
	} else {
		s.python = python
		s.log.WithFields(logrus.Fields{
			"python":     python.Version,
			"ext_suffix": python.ExtSuffix,
		}).Debug("Python interpreter probed")
	}

	m, err := manifest.Load(ctx, opts.manifestPath, manifest.Variables{
		Toolkit: s.toolkit,
		Python:  s.python,
	})
	if err != nil {
		return err
	}

	ext, err := m.Select(opts.extension)
	if err != nil {
		return err
	}
	s.ext = ext

	plan, err := cudaext.NewBuildPlan(ext.Spec, s.toolkit)
	if err != nil {
		return err
	}
	s.plan = plan
	return nil
}

// buildConfig returns the executor configuration for the session.
func (s *session) buildConfig(opts *options, destDir string) *cudaext.BuildConfig {
	cfg := &cudaext.BuildConfig{
		BuildDir:     s.cfg.BuildDir,
		DestPath:     destDir,
		HostCompiler: cudaext.Executable{Path: s.cfg.HostCompiler, Flags: s.cfg.HostFlags},
		Binding:      s.cfg.Binding(),
		Logger:       s.log,
		Verbose:      opts.verbose,
	}
	if s.python != nil {
		cfg.ExtSuffix = s.python.ExtSuffix
	}
	if opts.verbose {
		cfg.Stdout = os.Stderr
		cfg.Stderr = os.Stderr
	}
	return cfg
}
