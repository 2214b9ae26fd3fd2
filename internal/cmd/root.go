package cmd

import (
	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/config"
	"github.com/provisio/prov/internal/engine"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/version"
)

var (
	// Global flags
	configFlag     string
	repositoryFlag string
	verboseFlag    bool
	timestampsFlag bool

	// Resolved configuration (loaded during PersistentPreRunE)
	provConfig *config.ProvConfig
	configErr  error
)

// NewRootCmd creates the root command for the prov CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prov",
		Short: "Private package manager and incremental deployer",
		Long: `prov downloads products from private repositories and deploys them
incrementally: only the components that changed between the installed
version and the target version are undeployed or deployed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: PROV_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&repositoryFlag, "repository", "r", "", "Primary repository URL (env: PROV_REPOSITORY)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", true, "Show timestamps in log output")

	rootCmd.AddCommand(
		NewInstallCmd(),
		NewUpgradeCmd(),
		NewUninstallCmd(),
		NewListCmd(),
		NewRefreshCmd(),
		NewPlanCmd(),
		NewStartCmd(),
		NewStopCmd(),
		NewCacheCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}

// initializeGlobals sets up logging and loads configuration. A config that
// fails to load is kept as an error for the commands that need it.
func initializeGlobals(cmd *cobra.Command) error {
	provConfig, configErr = config.Resolve(configFlag, repositoryFlag)

	logCfg := output.LogConfig{
		Verbose: verboseFlag,
	}

	// flag (if explicitly set) > config > default (nil = true)
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	} else if provConfig != nil && provConfig.Config.Log.Timestamps != nil {
		logCfg.Timestamps = provConfig.Config.Log.Timestamps
	}

	output.SetupLogging(logCfg)

	if configErr != nil {
		output.Debug("config load error", "error", configErr)
	}
	output.Debug("prov started", "version", version.Version, "api", version.APIVersion)
	return nil
}

// newEngine builds an engine from the resolved configuration.
func newEngine() (*engine.Engine, error) {
	if configErr != nil {
		return nil, exitWith(configErr)
	}
	if provConfig == nil {
		return nil, exitWith(errNotInitialized)
	}
	e, err := engine.New(engine.Options{
		Config:     provConfig.Config,
		Repository: provConfig.Repository,
	})
	if err != nil {
		return nil, exitWith(err)
	}
	return e, nil
}

// GetConfigPath returns the resolved config path value.
func GetConfigPath() string {
	if provConfig != nil {
		return provConfig.ConfigPath
	}
	return configFlag
}
