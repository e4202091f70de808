// Package compdb writes a clang compilation database
// (compile_commands.json) for an extension build.
package compdb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	cudaext "github.com/contriboss/cuda-extension-go"
)

// FileName is the conventional database name.
const FileName = "compile_commands.json"

// Entry is one compilation database record.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
	Output    string   `json:"output,omitempty"`
}

// FromInvocations converts the compile invocations to entries. Translation
// and link steps are skipped. dir is the working directory the commands
// run in.
func FromInvocations(dir string, invocations []cudaext.Invocation) []Entry {
	entries := make([]Entry, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Step != cudaext.StepCompile {
			continue
		}
		entries = append(entries, Entry{
			Directory: dir,
			File:      inv.Input,
			Arguments: append([]string{inv.Executable}, inv.Args...),
			Output:    inv.Output,
		})
	}
	return entries
}

// Generate builds the database for everything executor would compile.
func Generate(executor *cudaext.BuildExecutor, dir string) ([]Entry, error) {
	invocations, err := executor.Commands()
	if err != nil {
		return nil, err
	}
	return FromInvocations(dir, invocations), nil
}

// Write encodes entries to w.
func Write(w io.Writer, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode compilation database: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteFile writes entries to path, creating parent directories.
func WriteFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a database from path.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid compilation database %s: %w", path, err)
	}
	return entries, nil
}
