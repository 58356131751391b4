package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpinkus/Sss/internal/shell"
	"github.com/mpinkus/Sss/pkg/ceremony"
	"github.com/mpinkus/Sss/pkg/ceremonyrand"
	"github.com/mpinkus/Sss/pkg/kvstore"
	"github.com/mpinkus/Sss/pkg/logging"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct [path to shares file]",
	Short: "Reconstruct a secret from keeper shares",
	Long: `reconstruct runs the interactive secret-reconstruction ceremony:
it binds an administrator session, loads a shares file, gathers keeper
passwords until a threshold of shares decrypt successfully (or too many
attempts fail), combines them, and verifies the result against the
recorded master secret hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		ceremonyCfg, err := loadCeremonyConfig(cfg.ConfigFilePath)
		if err != nil {
			return err
		}

		logger := logging.NewLogger(cfg.Verbose)
		engine, err := ceremony.NewEngine(ceremonyCfg, ceremonyrand.New(), logger)
		if err != nil {
			return err
		}

		var path string
		if len(args) == 1 {
			path = args[0]
		}

		progress := kvstore.NewMemory()
		defer progress.Close()
		console := shell.NewWithBroadcast(os.Stdin, os.Stdout, progress, "ceremony:"+engine.SessionID())
		result, err := engine.ReconstructSecret(console, path)
		if err != nil && result == nil {
			return err
		}

		printer := NewPrinter(cfg.OutputFormat, os.Stdout)
		if result.Success && cfg.OutputFormat != "json" {
			fmt.Fprintf(os.Stdout, "Reconstructed secret: %s\n", result.ReconstructedSecret)
		}
		if printErr := printer.PrintCeremonyResult(result); printErr != nil {
			return printErr
		}
		if err != nil {
			return err
		}

		sealed, finalizeErr := engine.FinalizeSession()
		if finalizeErr != nil {
			return finalizeErr
		}
		return printer.PrintSessionSummary(sealed.SessionData.SessionID, sealed.SessionDataHash, sealed.AdminSessionHMAC)
	},
}
