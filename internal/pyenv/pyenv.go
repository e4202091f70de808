// Package pyenv asks the target Python interpreter for the paths and
// suffix an extension module build depends on.
package pyenv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/magefile/mage/sh"
)

// probeScript prints one JSON object. numpy is optional.
const probeScript = `import json, sys, sysconfig
try:
    import numpy
    numpy_include = numpy.get_include()
except Exception:
    numpy_include = ""
print(json.dumps({
    "version": "%d.%d.%d" % sys.version_info[:3],
    "include": sysconfig.get_paths()["include"],
    "numpy_include": numpy_include,
    "ext_suffix": sysconfig.get_config_var("EXT_SUFFIX") or "",
}))`

var shOutput = sh.Output

// Interpreter describes a probed Python installation.
type Interpreter struct {
	Executable        string `json:"executable"`
	Version           string `json:"version"`
	IncludeDir        string `json:"include"`
	NumericIncludeDir string `json:"numpy_include"`
	ExtSuffix         string `json:"ext_suffix"`
}

// HasNumeric reports whether numpy headers were found.
func (i *Interpreter) HasNumeric() bool {
	return i.NumericIncludeDir != ""
}

// Probe runs python and decodes its report.
func Probe(ctx context.Context, python string) (*Interpreter, error) {
	if python == "" {
		return nil, errors.New("no python interpreter configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := shOutput(python, "-c", probeScript)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", python, err)
	}

	interp, err := Decode([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", python, err)
	}
	interp.Executable = python
	return interp, nil
}

// Decode parses the probe report. The last non-empty line is used so
// interpreter start-up noise is ignored.
func Decode(data []byte) (*Interpreter, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return nil, errors.New("empty interpreter report")
	}

	var interp Interpreter
	if err := json.Unmarshal([]byte(last), &interp); err != nil {
		return nil, fmt.Errorf("invalid interpreter report: %w", err)
	}
	if interp.IncludeDir == "" {
		return nil, errors.New("interpreter report has no include directory")
	}
	return &interp, nil
}
