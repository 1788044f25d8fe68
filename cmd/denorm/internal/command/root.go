// Copyright 2025 The redux-io Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package command implements the denorm CLI: load a normalized state file,
// denormalize items, one-references, or collections out of it, and print
// the resulting object graphs.
package command

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/taoh/redux-io/pkg/denorm"
	"github.com/taoh/redux-io/pkg/schemamap"
)

var (
	stateFlag  string
	pathFlags  []string
	outputFlag string
	depthFlag  int
)

// NewRootCommand builds the denorm root command with all subcommands
// attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "denorm",
		Short: "denormalize JSON-API state snapshots into nested object graphs",
		Long: "denorm resolves normalized, relationship-based records from a state\n" +
			"snapshot back into fully nested object graphs. Records are addressed\n" +
			"by schema and id; relationship cycles and depth bounds are handled by\n" +
			"substituting bare {id, type} descriptors.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&stateFlag, "state", "", "Path of the state snapshot file (json or yaml)")
	cmd.PersistentFlags().StringArrayVar(&pathFlags, "path", nil, "Schema path mapping schema=dotted.path (repeatable)")
	cmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "json", "Output format. One of: (json | yaml)")
	cmd.PersistentFlags().IntVar(&depthFlag, "max-depth", denorm.Unlimited, "Nesting depth bound; -1 means unlimited")

	cmd.AddCommand(
		NewItemCommand(),
		NewOneCommand(),
		NewCollectionCommand(),
		NewVersionCommand(),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newDenormalizer loads the state file and builds a find-storage
// denormalizer over it.
func newDenormalizer() (*denorm.Denormalizer, error) {
	if stateFlag == "" {
		return nil, fmt.Errorf("--state is required")
	}
	raw, err := os.ReadFile(stateFlag)
	if err != nil {
		return nil, err
	}
	var state map[string]any
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", stateFlag, err)
	}

	paths, err := parsePaths(pathFlags)
	if err != nil {
		return nil, err
	}
	return denorm.New(
		denorm.WithStorage(func() map[string]any { return state }, paths),
		denorm.WithDepthLimit(depthFlag),
	)
}

func parsePaths(flags []string) (schemamap.PathMap, error) {
	if len(flags) == 0 {
		return nil, fmt.Errorf("at least one --path schema=dotted.path is required")
	}
	paths := make(schemamap.PathMap, len(flags))
	for _, f := range flags {
		schema, path, ok := strings.Cut(f, "=")
		if !ok || schema == "" || path == "" {
			return nil, fmt.Errorf("bad --path %q, want schema=dotted.path", f)
		}
		paths[schema] = path
	}
	return paths, nil
}

func printResult(cmd *cobra.Command, v any) error {
	var out []byte
	var err error
	switch outputFlag {
	case "json":
		out, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unknown output format %q", outputFlag)
	}
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
