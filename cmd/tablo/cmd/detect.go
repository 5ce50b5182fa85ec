package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <files...>",
	Short: "Print the table region selected in each image",
	Long: `Run table detection only and print the selected region of each image as
[x1, y1, x2, y2] in pixels. Images without a table print an empty list.

Examples:
  tablo detect page.png
  tablo detect scans/*.jpg --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		format, _ := cmd.Flags().GetString("format")
		if format != pipeline.FormatText && format != pipeline.FormatJSON {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}

		cfg, err := loadCommandConfig(cmd, pipelineBindings)
		if err != nil {
			return err
		}
		pl, err := buildPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer closePipeline(pl)

		type detection struct {
			File    string      `json:"file"`
			Width   int         `json:"width"`
			Height  int         `json:"height"`
			Regions []utils.Box `json:"regions"`
		}
		files, err := discoverInputs(cmd, args)
		if err != nil {
			return err
		}
		found := make([]detection, 0, len(files))
		for _, pth := range files {
			img, meta, err := utils.LoadImage(pth)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", pth, err)
			}
			regions, err := pl.DetectTablesContext(commandContext(cmd), img)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", pth, err)
			}
			found = append(found, detection{File: pth, Width: meta.Width, Height: meta.Height, Regions: regions})
		}

		if format == pipeline.FormatJSON {
			b, err := json.MarshalIndent(found, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			return writeOutput(cmd, string(b))
		}

		var sb strings.Builder
		for _, d := range found {
			boxes := make([]string, len(d.Regions))
			for i, r := range d.Regions {
				boxes[i] = fmt.Sprintf("[%g, %g, %g, %g]", r.MinX, r.MinY, r.MaxX, r.MaxY)
			}
			fmt.Fprintf(&sb, "%s: %s\n", d.File, strings.Join(boxes, " "))
		}
		return writeOutput(cmd, sb.String())
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("format", "f", pipeline.FormatText, "output format (text, json)")
	detectCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	addPipelineFlags(detectCmd)
	addDiscoveryFlags(detectCmd)
}
