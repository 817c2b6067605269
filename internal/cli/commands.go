package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	track "github.com/goliatone/go-track"
	"github.com/goliatone/go-track/pkg/store"
	"github.com/spf13/cobra"
)

func newKeysCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(backend store.Backend) error {
				keys, err := backend.Keys(cmd.Context())
				if err != nil {
					return err
				}
				matched := make([]string, 0, len(keys))
				for _, key := range keys {
					if strings.HasPrefix(key, prefix) {
						matched = append(matched, key)
					}
				}
				if opts.config.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), matched)
				}
				for _, key := range matched {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys starting with prefix")
	return cmd
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(backend store.Backend) error {
				value, err := backend.Retrieve(cmd.Context(), args[0])
				if errors.Is(err, track.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				if opts.config.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"key": args[0], "value": value})
				}
				raw, err := json.Marshal(value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			})
		},
	}
}

func newRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"remove"},
		Short:   "Remove stored keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(backend store.Backend) error {
				for _, key := range args {
					if err := backend.Remove(cmd.Context(), key); err != nil {
						return err
					}
				}
				if opts.config.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"removed": args})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d key(s)\n", len(args))
				return nil
			})
		},
	}
}

// newKeyCommand prints the storage key a tracked property maps to without
// touching the store.
func newKeyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "key <type> <id> <property>",
		Short: "Print the storage key for a tracked property",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := track.BuildStorageKey(args[0], args[1], args[2])
			if opts.config.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"key": key})
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
