package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/dashboard"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/ingest"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

var importCmd = &cobra.Command{
	Use:   "import <kind> <file>",
	Short: "Upload a spreadsheet or data file",
	Example: `  spearctl import form-responses ./responses.xlsx
  spearctl import tank-inventory ./inventory.xlsx`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[1], err)
		}
		defer f.Close()

		result, err := d.Import(cmd.Context(), args[0], filepath.Base(args[1]), f)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		pterm.Success.Printf("Uploaded %s: %d rows inserted\n", args[0], result.Inserted)
		return nil
	},
}

var (
	exportOut     string
	exportPlatoon string
)

var exportCmd = &cobra.Command{
	Use:   "export <battalion|platoon>",
	Short: "Download the spreadsheet export of the selected week",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := sdk.ExportKind(args[0])
		if kind != sdk.ExportBattalion && kind != sdk.ExportPlatoon {
			return fmt.Errorf("unknown export %q (want battalion or platoon)", args[0])
		}

		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		if exportPlatoon != "" {
			if err := d.Store().Update(cmd.Context(), session.SetPlatoon(exportPlatoon)); err != nil {
				return err
			}
		}

		stream, err := d.Export(cmd.Context(), kind)
		if err != nil {
			if errors.Is(err, dashboard.ErrPlatoonRequired) {
				return fmt.Errorf("%w: pass --for <platoon>", err)
			}
			return fmt.Errorf("export failed: %w", err)
		}
		defer stream.Close()

		out := exportOut
		if out == "" {
			out = stream.Filename
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		n, err := io.Copy(f, stream.Body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		pterm.Success.Printf("Saved %s (%d bytes)\n", out, n)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <kind> <file|->",
	Short: "Validate and upload hand-written JSON records",
	Long: `Validates a JSON document against the schema of kind before uploading it.
Invalid input is reported with the location of the first problem and
nothing is sent. Kinds: form-responses, tank-inventory.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if args[1] == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		result, err := d.IngestManual(cmd.Context(), ingest.Kind(args[0]), raw)
		if verr, ok := ingest.AsValidationError(err); ok {
			pterm.Error.Printf("%s is invalid at %s: %s\n", verr.Kind, verr.Path, verr.Message)
			return fmt.Errorf("validation failed")
		}
		if err != nil {
			return err
		}
		pterm.Success.Printf("Ingested %s: %d rows inserted\n", args[0], result.Inserted)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: server-provided name)")
	exportCmd.Flags().StringVar(&exportPlatoon, "for", "", "Platoon to export")
}
