package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/batch"
	"github.com/MeKo-Tech/tablo/internal/config"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/spf13/cobra"
)

// Flag to configuration key bindings shared by the extraction commands.
var (
	outputBindings = map[string]string{
		"format":          "output.format",
		"raw":             "output.raw",
		"include-extents": "output.include_extents",
	}
	tableBindings = map[string]string{
		"headers":          "table.headers",
		"headers-file":     "table.headers_file",
		"column-threshold": "table.column_threshold",
		"row-threshold":    "table.row_threshold",
		"merge-unknown":    "table.merge_unknown",
	}
	pipelineBindings = map[string]string{
		"engine":          "recognizer.engine",
		"language":        "recognizer.language",
		"fragments-file":  "recognizer.fragments_file",
		"min-confidence":  "recognizer.min_confidence",
		"det-model":       "detector.model_path",
		"large-model":     "detector.use_large",
		"confidence":      "detector.confidence",
		"merge-threshold": "detector.merge_threshold",
		"whole-page":      "detector.whole_page",
		"gpu":             "gpu.enabled",
		"gpu-device":      "gpu.device",
		"gpu-mem-limit":   "gpu.memory_limit",
	}
)

func addOutputFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringP("format", "f", d.Output.Format, "output format (json, csv, text)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("raw", false, "output the unmerged grid with generic column names")
	cmd.Flags().Bool("include-extents", false, "add row extent columns to csv and text output")
}

func addTableFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringSlice("headers", nil, "canonical header names, comma separated")
	cmd.Flags().String("headers-file", "", "YAML file with canonical header names")
	cmd.Flags().Float64("column-threshold", d.Table.ColumnThreshold, "minimum overlap percent to assign a word to a column")
	cmd.Flags().Float64("row-threshold", d.Table.RowThreshold, "minimum vertical overlap percent to join a row")
	cmd.Flags().Bool("merge-unknown", d.Table.MergeUnknown, "merge cells of columns without a header into their neighbours")
}

func addPipelineFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().String("engine", d.Recognizer.Engine, "recognition engine ("+strings.Join(recognizer.Engines(), ", ")+")")
	cmd.Flags().StringP("language", "l", d.Recognizer.Language, "recognition language")
	cmd.Flags().String("fragments-file", "", "JSON fragments to use instead of an OCR engine")
	cmd.Flags().Float64("min-confidence", 0, "drop recognized words below this confidence (0..1)")
	cmd.Flags().String("det-model", "", "override detection model path")
	cmd.Flags().Bool("large-model", false, "use the large table detection model")
	cmd.Flags().Float64("confidence", d.Detector.Confidence, "minimum table detection confidence (0..1)")
	cmd.Flags().Float64("merge-threshold", d.Detector.MergeThreshold, "overlap percent above which table regions are merged")
	cmd.Flags().Bool("whole-page", false, "skip detection and treat the whole image as the table")
	cmd.Flags().Bool("gpu", false, "enable GPU acceleration using CUDA")
	cmd.Flags().Int("gpu-device", 0, "CUDA device ID to use")
	cmd.Flags().String("gpu-mem-limit", d.GPU.MemoryLimit, "GPU memory limit (e.g. '2G', '512M', 'auto')")
}

// loadCommandConfig binds the command's flags and returns the resolved configuration.
// Binding happens per run so commands sharing a key do not override each other.
func addDiscoveryFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories of directory arguments")
	cmd.Flags().StringSlice("include", nil, "only process files whose name matches these glob patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these glob patterns")
}

// discoverInputs expands file and directory arguments into the images to process.
func discoverInputs(cmd *cobra.Command, args []string) ([]string, error) {
	opts := batch.Options{}
	opts.Recursive, _ = cmd.Flags().GetBool("recursive")
	opts.Include, _ = cmd.Flags().GetStringSlice("include")
	opts.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
	return batch.Discover(args, opts)
}

func loadCommandConfig(cmd *cobra.Command, bindings ...map[string]string) (*config.Config, error) {
	for _, b := range bindings {
		bindFlags(cmd, b)
	}
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}

	// a fragments file implies the fragments engine unless one was chosen explicitly
	if cfg.Recognizer.FragmentsFile != "" && !cmd.Flags().Changed("engine") {
		cfg.Recognizer.Engine = recognizer.EngineFragments
	}

	headers, err := cfg.ResolveHeaders()
	if err != nil {
		return nil, err
	}
	cfg.Table.Headers = headers
	return cfg, nil
}

// commandContext returns the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func buildPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	pl, err := pipeline.NewBuilderWithConfig(cfg.ToPipelineConfig()).BuildContext(commandContext(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to build table pipeline: %w", err)
	}
	return pl, nil
}

func closePipeline(pl *pipeline.Pipeline) {
	if err := pl.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
	}
}

func outputOptions(cfg *config.Config) pipeline.OutputOptions {
	return pipeline.OutputOptions{
		Format:         cfg.Output.Format,
		Raw:            cfg.Output.Raw,
		IncludeExtents: cfg.Output.IncludeExtents,
	}
}

// writeOutput prints out or writes it to the --output file.
func writeOutput(cmd *cobra.Command, out string) error {
	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile == "" {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", outputFile)
	return err
}
