// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/netascode/go-jolokia"
)

func (a *app) readCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "read <mbean> [attribute...]",
		Short: "Read attributes of an MBean",
		Long: `Read one, several or all attributes of an MBean.

Without attributes all attributes are returned. With more than one attribute
the result is an object keyed by attribute name.`,
		Example: `  jolokia read java.lang:type=Memory HeapMemoryUsage --path used
  jolokia read java.lang:type=Threading ThreadCount PeakThreadCount`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readArgs := jolokia.ReadArgs{Path: jolokia.RawPath(path)}
			switch attrs := args[1:]; len(attrs) {
			case 0:
			case 1:
				readArgs.Attribute = attrs[0]
			default:
				readArgs.Attributes = attrs
			}
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.GetAttribute(ctx, args[0], readArgs)
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "inner path into the value, segments separated by /")
	return cmd
}

func (a *app) writeCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "write <mbean> <attribute> <value>",
		Short: "Write an attribute and print its previous value",
		Long: `Write an attribute and print its previous value.

The value is parsed as JSON when valid, so 42, true and {"a":1} keep their
types; anything else is sent as a string.`,
		Example: `  jolokia write java.lang:type=Memory Verbose true`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.SetAttribute(ctx, args[0], args[1], parseArg(args[2]), jolokia.RawPath(path))
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "inner path into the attribute, segments separated by /")
	return cmd
}

func (a *app) execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <mbean> <operation> [arg...]",
		Short: "Execute an MBean operation",
		Long: `Execute an MBean operation and print its result.

Overloaded operations are selected with a signature, e.g.
"getThreadInfo(long,int)". Arguments are parsed as JSON when valid.`,
		Example: `  jolokia exec java.lang:type=Memory gc
  jolokia exec java.lang:type=Threading 'getThreadInfo(long,int)' 1 10`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs := make([]any, 0, len(args)-2)
			for _, arg := range args[2:] {
				opArgs = append(opArgs, parseArg(arg))
			}
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.Execute(ctx, args[0], args[1], opArgs)
			})
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "search <pattern>",
		Short:   "List MBean names matching a pattern",
		Example: `  jolokia search 'java.lang:type=MemoryPool,*'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.Search(ctx, args[0])
			})
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show agent and protocol version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.Version(ctx)
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "Show MBean metadata",
		Example: `  jolokia list --path java.lang/type=Memory`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *jolokia.Simple) (any, error) {
				return s.List(ctx, jolokia.RawPath(path))
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "restrict the listing, e.g. java.lang/type=Memory")
	return cmd
}

// parseArg keeps valid JSON as raw JSON and treats anything else as a string
func parseArg(arg string) any {
	if arg != "" && gjson.Valid(arg) {
		return json.RawMessage(arg)
	}
	return arg
}

// print writes result as JSON, indented with --pretty
func (a *app) print(result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if a.flags.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("formatting result: %w", err)
		}
		data = buf.Bytes()
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
