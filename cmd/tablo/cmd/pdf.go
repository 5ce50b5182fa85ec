package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/tablo/internal/pdf"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/spf13/cobra"
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <file>",
	Short: "Extract the table of one PDF page",
	Long: `Extract the embedded page image of a scanned PDF and reconstruct its table.
Exactly one page is processed per run; page ranges are rejected.

Examples:
  tablo pdf statement.pdf
  tablo pdf statement.pdf --page 3 --format csv
  tablo pdf locked.pdf --password secret`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		pageFlag, _ := cmd.Flags().GetString("page")
		page, err := pdf.ParsePage(pageFlag)
		if err != nil {
			return err
		}
		userPW, _ := cmd.Flags().GetString("password")
		ownerPW, _ := cmd.Flags().GetString("owner-password")

		cfg, err := loadCommandConfig(cmd, outputBindings, tableBindings, pipelineBindings)
		if err != nil {
			return err
		}

		img, err := pdf.ExtractPageImage(args[0], page, pdf.Options{UserPassword: userPW, OwnerPassword: ownerPW})
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		pl, err := buildPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer closePipeline(pl)

		res, err := pl.ExtractTableContext(commandContext(cmd), img)
		if err != nil {
			return fmt.Errorf("table extraction failed for page %d: %w", page, err)
		}

		out, err := pipeline.Format(res, outputOptions(cfg))
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	addOutputFlags(pdfCmd)
	addTableFlags(pdfCmd)
	addPipelineFlags(pdfCmd)
	pdfCmd.Flags().StringP("page", "p", "1", "page to process (1-based)")
	pdfCmd.Flags().String("password", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
}
