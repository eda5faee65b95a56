package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/observability"
	"github.com/spherical/autoslides/internal/pptx"
)

var (
	cfgFile  string
	verbose  bool
	noColor  bool
	logLevel string

	appCfg *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autoslides",
	Short: "Automated marketing report decks",
	Long: `autoslides exports the monthly marketing dashboard for every configured
brand, converts each export into a widescreen slide deck, overlays AI narrative
summaries and publishes the decks to the brand's Drive folder.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appCfg = cfg

		level := cfg.Observability.LogLevel
		if logLevel != "" {
			level = logLevel
		} else if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "autoslides",
		})
		pptx.SetLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
