// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available on the Ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.Ollama.Timeout)
			defer cancel()

			models, err := e.client.ListModels(ctx)
			if err != nil {
				return err
			}
			sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}
			if len(models) == 0 {
				fmt.Fprintln(out, "No models installed. Try `ollama pull "+e.cfg.Ollama.Model+"`.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tPARAMS\tMODIFIED")
			for _, m := range models {
				marker := ""
				if m.Name == e.cfg.Ollama.Model {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n",
					m.Name, marker, m.FormatSize(), m.Details.ParameterSize,
					m.ModifiedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
