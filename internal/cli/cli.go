// Package cli implements the httprequester command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/kroma-labs/httprequester/config"
	"github.com/kroma-labs/httprequester/httpclient"
	"github.com/kroma-labs/httprequester/internal/telemetry"
	"github.com/kroma-labs/httprequester/requester"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is reported by the version command. Set with -ldflags.
var Version = "dev"

type app struct {
	out    io.Writer
	errOut io.Writer

	configFile string
	baseURL    string
	logLevel   string

	cfg       *config.Config
	logger    zerolog.Logger
	runtime   config.Runtime
	providers *telemetry.Providers
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "httprequester",
		Short: "Send resilient HTTP requests",
		Long: `httprequester sends HTTP requests through a pooled client with retries,
circuit breaking, rate limiting and OpenTelemetry instrumentation.

Settings come from an optional YAML file, HTTPREQUESTER_* environment
variables and flags, in increasing priority.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&a.baseURL, "base-url", "", "base address of the target service")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.newGetCommand(),
		a.newSendCommand("post", "POST"),
		a.newSendCommand("put", "PUT"),
		a.newDeleteCommand(),
		a.newServeCommand(),
		newVersionCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}
	if a.baseURL != "" {
		overrides["client.base_url"] = a.baseURL
	}
	if a.logLevel != "" {
		overrides["log.level"] = a.logLevel
	}
	if addr, err := cmd.Flags().GetString("addr"); err == nil && cmd.Flags().Changed("addr") {
		overrides["server.addr"] = addr
	}

	opts := []config.LoadOption{config.WithOverrides(overrides)}
	if a.configFile != "" {
		opts = append(opts, config.WithFile(a.configFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(a.errOut)

	providers, err := telemetry.Setup(cmd.Context(), cfg.Telemetry, telemetry.Options{Global: true})
	if err != nil {
		return err
	}
	a.providers = providers

	a.runtime = config.Runtime{
		Logger:         a.logger,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
		Redis:          cfg.NewRedis(),
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	var errs []error
	if a.providers != nil {
		errs = append(errs, a.providers.Shutdown(context.WithoutCancel(cmd.Context())))
	}
	if a.runtime.Redis != nil {
		errs = append(errs, a.runtime.Redis.Close())
	}
	return errors.Join(errs...)
}

// newRequester builds the client and requester described by the loaded
// configuration. The caller closes the client.
func (a *app) newRequester() (*httpclient.Client, *requester.Requester, error) {
	if a.cfg.Client.BaseURL == "" {
		return nil, nil, fmt.Errorf("no base address: set --base-url, client.base_url or %sCLIENT__BASE_URL", config.EnvPrefix)
	}

	clientOpts, err := a.cfg.ClientOptions(a.runtime)
	if err != nil {
		return nil, nil, err
	}
	client, err := httpclient.New(clientOpts...)
	if err != nil {
		return nil, nil, err
	}

	r, err := requester.New(client, a.cfg.RequesterOptions(a.runtime)...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, r, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Skip config loading for version.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "httprequester %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Built with %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
