package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "keylock",
	Short:         "Password-protected store for graphene private keys",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `keylock keeps WIF private keys indexed by their graphene public key.

Keys are encrypted with a random master secret. The master secret is stored
encrypted under your password, so changing the password never touches the
keys themselves.

UNLOCKING:

  - Prompted on the terminal when a command needs private keys.
  - Read from $UNLOCK (see auto_unlock_env in settings.yaml).
  - Read from the OS keyring after 'keylock unlock --save'.

EXAMPLES:

  keylock init
  keylock keys add --pub GPH6UUbAGbTLLWfY2gAc8XmjGBz2c7WT4fYB5r1L1aHDwAY88ujex
  keylock keys ls
  keylock keys get GPH6UUbAGbTLLWfY2gAc8XmjGBz2c7WT4fYB5r1L1aHDwAY88ujex
  keylock status`,
	PersistentPreRunE: loadSettings,
}

var (
	settingsFile string
	storeFlag    string
	backendFlag  string
	logLevelFlag string

	// settings is loaded before every command runs
	settings config.Settings
)

func init() {
	rootCmd.SetVersionTemplate("keylock version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsFile, "config", "", "Settings file (default "+config.SettingsPath()+")")
	flags.StringVar(&storeFlag, "store", "", "Store path, overrides settings")
	flags.StringVar(&backendFlag, "backend", "", "Storage backend: bolt, yaml or memory")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error, critical, off")
}

// SetVersion sets the version string shown by --version
func SetVersion(v string) { rootCmd.Version = v }

// Execute runs the command line and exits on error
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		HandleError(err)
	}
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	path := settingsFile
	if path == "" {
		path = config.SettingsPath()
	}

	s, err := config.Load(path)
	if err != nil {
		return err
	}
	if storeFlag != "" {
		s.Store = storeFlag
	}
	if backendFlag != "" {
		s.Backend = backendFlag
	}
	if logLevelFlag != "" {
		s.LogLevel = logLevelFlag
	}
	if err := s.Validate(); err != nil {
		return err
	}

	settings = s
	setLogLevels(s.LogLevel)
	log.Debugf("Settings loaded from %s", path)
	return nil
}
