package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/spf13/cobra"
)

// modelsCmd lists the detection models and whether they are installed.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List table detection models and their install status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		dir := models.GetModelsDir(cfg.ModelsDir)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tSTATUS\tPATH")
		for _, m := range models.ListAvailableModels() {
			path := models.ResolveModelPath(dir, m.Type, m.Filename)
			status := "missing"
			if models.ValidateModelExists(path) == nil {
				status = "installed"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, status, path)
		}
		tessdata := models.GetTessdataDir(dir)
		_, _ = fmt.Fprintf(w, "tessdata\t-\t%s\n", tessdata)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
