package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/spf13/cobra"
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments <file.json|->",
	Short: "Rebuild a table from recognized word fragments",
	Long: `Reconstruct a table from a JSON array of word fragments,
[{"text": "...", "box": [x1, y1, x2, y2]}, ...]. No models are needed.
Use "-" to read the fragments from stdin.

Examples:
  tablo fragments words.json
  tablo fragments words.json --headers Item,Qty,Price --format csv
  ocr-tool page.png | tablo fragments - --format text`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCommandConfig(cmd, outputBindings, tableBindings)
		if err != nil {
			return err
		}

		var frags []table.Fragment
		if args[0] == "-" {
			frags, err = recognizer.ReadFragments(cmd.InOrStdin())
		} else {
			frags, err = recognizer.LoadFragmentsFile(args[0])
		}
		if err != nil {
			return err
		}

		opts := cfg.TableOptions()
		if show, _ := cmd.Flags().GetBool("show-dropped"); show {
			opts.OnDrop = func(column string, f table.Fragment) {
				slog.Info("Fragment dropped", "column", column, "text", f.Text, "box", f.Box)
			}
		}

		res := pipeline.ReconstructFragments(frags, opts)
		if !res.Found {
			slog.Warn("No fragments to reconstruct", "file", args[0])
		}

		out, err := pipeline.Format(res, outputOptions(cfg))
		if err != nil {
			return fmt.Errorf("format %s failed: %w", cfg.Output.Format, err)
		}
		return writeOutput(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(fragmentsCmd)

	addOutputFlags(fragmentsCmd)
	addTableFlags(fragmentsCmd)
	fragmentsCmd.Flags().Bool("show-dropped", false, "log fragments the row aligner could not place")
}
