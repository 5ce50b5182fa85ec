package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <files or directories...>",
	Short: "Extract tables from images",
	Long: `Process one or more image files: detect the table, recognize its words and rebuild
the grid. Every image is an independent extraction.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  tablo image invoice.png
  tablo image scans/*.png --format csv --workers 8
  tablo image scans/ --recursive --include 'page_*.png'
  tablo image statement.jpg --headers Date,Description,Amount --output table.json
  tablo image cropped.png --whole-page --fragments-file words.json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg, err := loadCommandConfig(cmd, outputBindings, tableBindings, pipelineBindings, imageBindings)
		if err != nil {
			return err
		}

		files, err := discoverInputs(cmd, args)
		if err != nil {
			return err
		}

		images := make([]image.Image, len(files))
		for i, pth := range files {
			if !utils.IsSupportedImage(pth) {
				return fmt.Errorf("unsupported image format: %s", pth)
			}
			img, _, err := utils.LoadImage(pth)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", pth, err)
			}
			images[i] = img
		}

		pl, err := buildPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer closePipeline(pl)

		par := pipeline.ParallelConfig{MaxWorkers: cfg.Batch.Workers}
		if progress, _ := cmd.Flags().GetBool("progress"); progress {
			par.ProgressCallback = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "")
		} else if len(images) > 1 {
			par.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
		}

		results, err := pl.ExtractTablesParallel(commandContext(cmd), images, par)
		if err != nil {
			if !cfg.Batch.ContinueOnError || results == nil {
				return fmt.Errorf("table extraction failed: %w", err)
			}
			slog.Warn("Some images failed, continuing", "error", err)
		}

		out, err := formatImageResults(files, results, outputOptions(cfg))
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	},
}

var imageBindings = map[string]string{
	"workers":           "batch.workers",
	"continue-on-error": "batch.continue_on_error",
}

type fileResult struct {
	File   string                `json:"file"`
	Result *pipeline.TableResult `json:"result"`
}

// formatImageResults renders one result per file. Failed files (nil results) are skipped.
// Several files in CSV or text output are separated by "# <file>" lines.
func formatImageResults(files []string, results []*pipeline.TableResult, opts pipeline.OutputOptions) (string, error) {
	if opts.Format == "" || opts.Format == pipeline.FormatJSON {
		if len(files) == 1 {
			if results[0] == nil {
				return "", fmt.Errorf("no result for %s", files[0])
			}
			return pipeline.ToJSON(results[0])
		}
		list := make([]fileResult, 0, len(files))
		for i, res := range results {
			if res != nil {
				list = append(list, fileResult{File: files[i], Result: res})
			}
		}
		b, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(b), nil
	}

	var sb strings.Builder
	for i, res := range results {
		if res == nil {
			continue
		}
		s, err := pipeline.Format(res, opts)
		if err != nil {
			return "", fmt.Errorf("format %s failed: %w", opts.Format, err)
		}
		if len(files) > 1 {
			sb.WriteString("# " + files[i] + "\n")
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addOutputFlags(imageCmd)
	addTableFlags(imageCmd)
	addPipelineFlags(imageCmd)
	addDiscoveryFlags(imageCmd)
	imageCmd.Flags().IntP("workers", "w", 4, "number of images processed in parallel")
	imageCmd.Flags().Bool("continue-on-error", false, "keep going when an image fails")
	imageCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
