// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/bootstrap"
	"github.com/cardinalhq/settingsgateway/settings"
)

var (
	setAction  string
	setIndex   int
	setRaw     bool
	getDisplay bool
)

func init() {
	schemaCmd := &cobra.Command{
		Use:   "schema [gateway...]",
		Short: "Print the declared schema of gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				names := args
				if len(names) == 0 {
					names = rt.Driver.Names()
				}
				out := make(map[string]any, len(names))
				for _, name := range names {
					g, err := lookupGateway(rt, name)
					if err != nil {
						return err
					}
					out[name] = g.Schema()
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <gateway> <id> [path...]",
		Short: "Print stored settings, or selected paths of them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, args[0], args[1], func(ctx context.Context, s *settings.Settings) error {
				paths := args[2:]
				if len(paths) == 0 {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"id":       s.ID(),
						"status":   s.ExistenceStatus().String(),
						"settings": s.ToMap(),
					})
				}
				out := make(map[string]any, len(paths))
				for i, v := range s.Pluck(paths...) {
					if getDisplay {
						text, err := s.Display(paths[i])
						if err != nil {
							return err
						}
						out[paths[i]] = text
						continue
					}
					out[paths[i]] = v
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	getCmd.Flags().BoolVar(&getDisplay, "display", false, "Print values as display text")

	setCmd := &cobra.Command{
		Use:   "set <gateway> <id> <path> <value...>",
		Short: "Validate and write a value",
		Long: `Validate and write a value. Each value is parsed as JSON when possible and
taken as a string otherwise; --raw always takes strings. Several values are
written as one list, for array keys.`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := setOptions(cmd)
			if err != nil {
				return err
			}
			value := parseValues(args[3:], setRaw)
			return withSettings(cmd, args[0], args[1], func(ctx context.Context, s *settings.Settings) error {
				changes, err := s.Update(ctx, args[2], value, opts...)
				if err != nil {
					return err
				}
				return printChanges(cmd.OutOrStdout(), changes)
			})
		},
	}
	setCmd.Flags().StringVar(&setAction, "action", string(settings.ArrayAuto), "Array action: auto, add, remove or overwrite")
	setCmd.Flags().IntVar(&setIndex, "index", -1, "Array index to splice at")
	setCmd.Flags().BoolVar(&setRaw, "raw", false, "Take values as strings without JSON parsing")

	resetCmd := &cobra.Command{
		Use:   "reset <gateway> <id> [path...]",
		Short: "Restore paths, or every key, to their defaults",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, args[0], args[1], func(ctx context.Context, s *settings.Settings) error {
				var paths []string
				if len(args) > 2 {
					paths = args[2:]
				}
				changes, err := s.Reset(ctx, paths)
				if err != nil {
					return err
				}
				return printChanges(cmd.OutOrStdout(), changes)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <gateway> <id>",
		Short: "Delete the stored settings document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, args[0], args[1], func(ctx context.Context, s *settings.Settings) error {
				existed := s.ExistenceStatus() == settings.Exists
				if err := s.Destroy(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": s.ID(), "deleted": existed})
			})
		},
	}

	rootCmd.AddCommand(schemaCmd, getCmd, setCmd, resetCmd, deleteCmd)
}

func setOptions(cmd *cobra.Command) ([]settings.Option, error) {
	var opts []settings.Option
	switch action := settings.ArrayAction(setAction); action {
	case settings.ArrayAuto, settings.ArrayAdd, settings.ArrayRemove, settings.ArrayOverwrite:
		opts = append(opts, settings.WithArrayAction(action))
	default:
		return nil, fmt.Errorf("unknown array action %q", setAction)
	}
	if cmd.Flags().Changed("index") {
		opts = append(opts, settings.WithArrayIndex(setIndex))
	}
	return opts, nil
}

// parseValues turns command line words into a value: one word is a scalar,
// several are a list.
func parseValues(words []string, raw bool) any {
	values := make([]any, len(words))
	for i, w := range words {
		values[i] = parseValue(w, raw)
	}
	if len(values) == 1 {
		return values[0]
	}
	return values
}

func parseValue(word string, raw bool) any {
	if raw {
		return word
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(word))
	if err := dec.Decode(&v); err != nil || dec.More() {
		return word
	}
	return v
}

func withRuntime(cmd *cobra.Command, fn func(context.Context, *bootstrap.Runtime) error) error {
	setupCLILogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// One-shot commands never need the sync pass or Kafka.
	cfg.Gateways.SyncOnStart = false
	cfg.Events.Kafka.Enabled = false

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.Start(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(ctx, rt)
}

func withSettings(cmd *cobra.Command, name, id string, fn func(context.Context, *settings.Settings) error) error {
	return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		g, err := lookupGateway(rt, name)
		if err != nil {
			return err
		}
		s := g.Acquire(id, nil)
		if err := s.Sync(ctx); err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

func lookupGateway(rt *bootstrap.Runtime, name string) (*gateway.Gateway, error) {
	g, ok := rt.Driver.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrGatewayNotFound, name)
	}
	return g, nil
}

func printChanges(w io.Writer, changes []settings.Change) error {
	out := make([]map[string]any, len(changes))
	for i, c := range changes {
		out[i] = map[string]any{"path": c.Path(), "previous": c.Previous, "next": c.Next}
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
