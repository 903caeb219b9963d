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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/settingsgateway/internal/bootstrap"
)

var (
	importReplace bool
	importDryRun  bool
	exportOutput  string
)

func init() {
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Write settings documents from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				stats, err := bootstrap.ImportFromYAML(ctx, args[0], rt.Driver, bootstrap.ImportOptions{
					Replace: importReplace,
					DryRun:  importDryRun,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"documents": stats.Documents,
					"changes":   stats.Changes,
					"dry_run":   importDryRun,
				})
			})
		},
	}
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Reset keys the seed does not name")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without writing")

	exportCmd := &cobra.Command{
		Use:   "export [gateway...]",
		Short: "Write stored settings documents as a YAML seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				w := cmd.OutOrStdout()
				if exportOutput != "" && exportOutput != "-" {
					f, err := os.Create(exportOutput)
					if err != nil {
						return fmt.Errorf("creating %s: %w", exportOutput, err)
					}
					defer func() { _ = f.Close() }()
					w = f
				}
				return bootstrap.Export(ctx, rt.Driver, w, args...)
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "Output file, - for stdout")

	rootCmd.AddCommand(importCmd, exportCmd)
}
