// Package cli implements the trackctl commands for inspecting persisted
// tracking state.
package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-track/internal/cliconfig"
	"github.com/goliatone/go-track/pkg/store"
	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the backend a command runs against.
type Opener func(ctx context.Context, cfg store.Config) (store.Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string
	Backend    string
	Path       string
	Bucket     string
	Prefix     string
	Region     string
	Endpoint   string

	config cliconfig.Config
	open   Opener
}

// NewRootCommand creates the trackctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(store.Open)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "trackctl",
		Short:         "Inspect persisted tracking state",
		Long:          "trackctl lists, reads and removes the values tracked objects persisted into a store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", cliconfig.DefaultPath, "path to the TOML configuration file")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Backend, "backend", "", "store backend (memory|file|sqlite|s3)")
	flags.StringVar(&opts.Path, "path", "", "file or sqlite database path")
	flags.StringVar(&opts.Bucket, "bucket", "", "s3 bucket")
	flags.StringVar(&opts.Prefix, "prefix-path", "", "s3 object prefix")
	flags.StringVar(&opts.Region, "region", "", "s3 region")
	flags.StringVar(&opts.Endpoint, "endpoint", "", "s3 endpoint for compatible services")

	cmd.AddCommand(newKeysCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newKeyCommand(opts))

	return cmd
}

// resolve loads the config file and lets explicitly set flags win.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := cliconfig.Load(o.ConfigPath, flags.Changed("config"))
	if err != nil {
		return err
	}

	if flags.Changed("format") {
		cfg.Format = o.Format
	}
	overrides := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"path", o.Path, &cfg.Store.Path},
		{"bucket", o.Bucket, &cfg.Store.Bucket},
		{"prefix-path", o.Prefix, &cfg.Store.Prefix},
		{"region", o.Region, &cfg.Store.Region},
		{"endpoint", o.Endpoint, &cfg.Store.Endpoint},
	}
	for _, override := range overrides {
		if flags.Changed(override.flag) {
			*override.dst = override.value
		}
	}
	if flags.Changed("backend") {
		cfg.Store.Kind = store.Kind(o.Backend)
	}

	if !slices.Contains(ValidFormats, cfg.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	o.config = cfg
	return nil
}

// withBackend opens the configured backend for the duration of fn.
func (o *RootOptions) withBackend(ctx context.Context, fn func(store.Backend) error) (err error) {
	backend, err := o.open(ctx, o.config.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", o.config.Store.Kind, err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close %s store: %w", o.config.Store.Kind, closeErr))
		}
	}()
	return fn(backend)
}
