package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cardscan/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model files the scanner expects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		dir := models.GetModelsDir(cfg.ModelsDir)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tSTATUS\tPATH")
		for _, info := range models.ListAvailableModels() {
			path := models.ResolveModelPath(dir, info.Type, info.Filename)
			status := "ok"
			if err := models.ValidateModelExists(path); err != nil {
				status = "missing"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Type, status, path)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
