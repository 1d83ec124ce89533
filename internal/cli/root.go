// Package cli implements the apimda command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bjaus/apimda/config"
	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/scan"
	"github.com/bjaus/apimda/validation"
)

// Build info (set via ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// DefaultConfigPath is read when --config is not given and the file exists.
const DefaultConfigPath = "apimda.yaml"

// Execute runs the apimda CLI.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

type globals struct {
	log        *logrus.Logger
	logLevel   string
	logFormat  string
	configPath string
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	g := &globals{log: logrus.New()}

	cmd := &cobra.Command{
		Use:   "apimda",
		Short: "Build-time tooling for annotated Go HTTP controllers",
		Long: `apimda reads Go packages whose controllers carry //apimda: directives.

It validates the declarations, writes the OpenAPI document and the runtime
manifest, and generates the glue that serves the controllers.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.log.SetOutput(cmd.ErrOrStderr())

			level, err := logrus.ParseLevel(g.logLevel)
			if err != nil {
				return err
			}
			g.log.SetLevel(level)

			switch g.logFormat {
			case "json":
				g.log.SetFormatter(&logrus.JSONFormatter{})
			default:
				g.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text",
		"Log format (text, json)")
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "",
		"Path to configuration file (default "+DefaultConfigPath+" when present)")

	cmd.AddCommand(
		newOpenAPICmd(g),
		newValidateCmd(g),
		newManifestCmd(g),
		newGenerateCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// config loads the configuration file, falling back to the defaults when
// no file was named and the default file does not exist.
func (g *globals) config() (*config.Config, error) {
	path := g.configPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); errors.Is(err, os.ErrNotExist) {
			g.log.Debug("No configuration file, using defaults")
			return config.Default(), nil
		}
		path = DefaultConfigPath
	}

	g.log.WithField("path", path).Info("Loading configuration")
	return config.Load(path)
}

// extract scans the packages named by args, or by the configuration when
// args is empty.
func (g *globals) extract(ctx context.Context, cfg *config.Config, args []string) (*metadata.App, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Packages
	}
	return scan.Extract(ctx, scan.Config{Logger: g.log}, patterns...)
}

// extractValid is extract followed by validation. Every violation is
// logged and returned, joined.
func (g *globals) extractValid(ctx context.Context, cfg *config.Config, args []string) (*metadata.App, error) {
	app, err := g.extract(ctx, cfg, args)
	if err != nil {
		return nil, err
	}
	res := validation.Validate(app)
	for _, v := range res.Violations {
		g.log.WithField("code", v.Code).Error(v.Message)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// output returns the writer for --out, or stdout when it is empty.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "apimda %s\n", Version)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Build date: %s\n", BuildDate)
		},
	}
}
