// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Command jolokia talks to a Jolokia agent from the command line.
//
// Usage:
//
//	jolokia --url http://localhost:8778/jolokia read java.lang:type=Memory HeapMemoryUsage --path used
//	jolokia exec java.lang:type=Threading dumpAllThreads false false
//	jolokia search 'java.lang:type=MemoryPool,*'
//
// The agent URL and credentials default to the JOLOKIA_URL, JOLOKIA_USER and
// JOLOKIA_PASSWORD environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netascode/go-jolokia"
)

// Environment variables used as flag defaults
const (
	EnvURL      = "JOLOKIA_URL"
	EnvUser     = "JOLOKIA_USER"
	EnvPassword = "JOLOKIA_PASSWORD"
)

// DefaultURL is used when neither --url nor JOLOKIA_URL is set
const DefaultURL = "http://localhost:8778/jolokia"

// globalFlags holds the persistent flags shared by all subcommands
type globalFlags struct {
	url      string
	user     string
	password string
	timeout  time.Duration
	insecure bool
	logLevel string
	logFile  string
	pretty   bool
}

// app carries the state of a single command invocation
type app struct {
	flags  globalFlags
	out    io.Writer
	logger *zap.Logger
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree writing results to out and errors to errOut
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "jolokia",
		Short:         "Jolokia command line client",
		Long:          "Read and write JMX attributes, execute operations and browse MBeans through a Jolokia agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(a.flags.logLevel, a.flags.logFile, errOut)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.url, "url", envOr(EnvURL, DefaultURL), "agent URL (env "+EnvURL+")")
	pf.StringVarP(&a.flags.user, "user", "u", os.Getenv(EnvUser), "basic auth user (env "+EnvUser+")")
	pf.StringVarP(&a.flags.password, "password", "p", os.Getenv(EnvPassword), "basic auth password (env "+EnvPassword+")")
	pf.DurationVar(&a.flags.timeout, "timeout", jolokia.DefaultOperationTimeout, "request timeout")
	pf.BoolVarP(&a.flags.insecure, "insecure", "k", false, "skip TLS certificate verification")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug|info|warn|error|none")
	pf.StringVar(&a.flags.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	pf.BoolVar(&a.flags.pretty, "pretty", false, "indent JSON output")

	root.AddCommand(
		a.readCmd(),
		a.writeCmd(),
		a.execCmd(),
		a.searchCmd(),
		a.versionCmd(),
		a.listCmd(),
	)

	return root
}

// simple creates a client and facade from the global flags
func (a *app) simple() (*jolokia.Client, *jolokia.Simple, error) {
	opts := []func(*jolokia.Client){
		jolokia.OperationTimeout(a.flags.timeout),
		jolokia.WithLogger(jolokia.NewZapLogger(a.logger)),
	}
	if a.flags.user != "" || a.flags.password != "" {
		opts = append(opts, jolokia.Username(a.flags.user), jolokia.Password(a.flags.password))
	}
	if a.flags.insecure {
		opts = append(opts, jolokia.VerifyCertificate(false))
	}
	if a.flags.pretty {
		opts = append(opts, jolokia.WithPrettyPrintLogs(true))
	}

	client, err := jolokia.NewClient(a.flags.url, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, jolokia.NewSimple(client), nil
}

// run executes fn with a facade and closes the client afterwards
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *jolokia.Simple) (any, error)) error {
	client, simple, err := a.simple()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			a.logger.Debug("closing client failed", zap.Error(err))
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := fn(ctx, simple)
	if err != nil {
		return err
	}
	return a.print(result)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
