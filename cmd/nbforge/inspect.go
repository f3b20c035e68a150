// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/internal/params"
	"github.com/pdiddy/nbforge/internal/store"
	"github.com/pdiddy/nbforge/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect INPUT",
	Short: "Show the parameters a notebook declares",
	Long: `Inspect reads the notebook's cell tagged 'parameters' and prints each
declared parameter with its inferred type, default, and help comment.
Notebooks without a parameters cell exit non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: inspectNotebook,
}

func init() {
	inspectCmd.Flags().StringP("kernel", "k", "", "kernel name override")
	inspectCmd.Flags().StringP("language", "l", "", "kernel language override")
	inspectCmd.Flags().Bool("json", false, "output the inferred parameters as JSON")

	rootCmd.AddCommand(inspectCmd)
}

func inspectNotebook(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	st := store.New(version, cfg.HTTP, logger)

	nb, err := st.ReadNotebook(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	kernel, _ := cmd.Flags().GetString("kernel")
	language, _ := cmd.Flags().GetString("language")

	inferred, err := params.Infer(nb, kernel, language, logger)
	if err != nil {
		return err
	}
	hasCell := notebook.AnyTaggedCell(nb, params.ParametersTag)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		if inferred == nil {
			inferred = []types.Parameter{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(inferred); err != nil {
			return err
		}
		if !hasCell {
			cmd.SilenceErrors = true
			return fmt.Errorf("no cell tagged %q", params.ParametersTag)
		}
		return nil
	}

	if !params.RenderHelp(os.Stdout, st.PrettyPath(args[0]), nb, inferred) {
		// The rendered block already told the user; skip the Error: line.
		cmd.SilenceErrors = true
		return fmt.Errorf("no cell tagged %q", params.ParametersTag)
	}
	return nil
}
