package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/smsfilter/internal/backup"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the rule set as a backup document",
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		formatName, _ := cmd.Flags().GetString("format")

		format := backup.FormatFromPath(outPath)
		if cmd.Flags().Changed("format") || outPath == "" {
			var err error
			if format, err = backup.ParseFormat(formatName); err != nil {
				return err
			}
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer f.Close()
			w = f
		}

		n, err := a.backups.ExportTo(cmd.Context(), w, format)
		if err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rules to %s\n", n, outPath)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the rule set with a backup document",
	Long: `Replace the rule set with the rules of a backup document.

The import is all-or-nothing: if any record is invalid the error names the
record and the stored rules are left unchanged. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		formatName, _ := cmd.Flags().GetString("format")

		format := backup.FormatFromPath(path)
		if cmd.Flags().Changed("format") {
			var err error
			if format, err = backup.ParseFormat(formatName); err != nil {
				return err
			}
		}

		var r io.Reader = cmd.InOrStdin()
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()
			r = f
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		imported, err := a.backups.ImportFrom(cmd.Context(), r, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules\n", len(imported))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "json", "document format (json, yaml)")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	importCmd.Flags().String("format", "json", "document format (json, yaml); default from the file extension")

	rootCmd.AddCommand(exportCmd, importCmd)
}
