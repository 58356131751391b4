package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mpinkus/Sss/internal/shell"
	"github.com/mpinkus/Sss/pkg/ceremony"
	"github.com/mpinkus/Sss/pkg/ceremonyconfig"
	"github.com/mpinkus/Sss/pkg/ceremonyrand"
	"github.com/mpinkus/Sss/pkg/kvstore"
	"github.com/mpinkus/Sss/pkg/logging"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Split a secret into encrypted keeper shares",
	Long: `create runs the interactive key-splitting ceremony: it binds an
administrator session, collects the organization, share parameters, and
secret, splits it with Shamir's Secret Sharing, assigns an encrypted share
to each keeper, optionally self-tests reconstruction, and emits the shares
file alongside a sealed session journal.`,
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

		progress := kvstore.NewMemory()
		defer progress.Close()
		console := shell.NewWithBroadcast(os.Stdin, os.Stdout, progress, "ceremony:"+engine.SessionID())
		result, err := engine.CreateShares(console)
		if err != nil && result == nil {
			return err
		}

		printer := NewPrinter(cfg.OutputFormat, os.Stdout)
		if printErr := printer.PrintCeremonyResult(result); printErr != nil {
			return printErr
		}
		if err != nil {
			return err
		}
		if !result.Success {
			return nil
		}

		sealed, finalizeErr := engine.FinalizeSession()
		if finalizeErr != nil {
			return finalizeErr
		}
		return printer.PrintSessionSummary(sealed.SessionData.SessionID, sealed.SessionDataHash, sealed.AdminSessionHMAC)
	},
}

func loadCeremonyConfig(path string) (*ceremonyconfig.CeremonyConfig, error) {
	if path == "" {
		return ceremonyconfig.Default(), nil
	}
	return ceremonyconfig.Load(path)
}
