package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/config"
	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/keyring"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store and set the master password",
	Long: `Create the key store and protect it with a new master password.

The password is read from the unlock environment variable if set, otherwise
it is prompted for twice. Settings are written to settings.yaml on first use.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initSaveKeyring bool

func init() {
	initCmd.Flags().BoolVar(&initSaveKeyring, "save", false, "Save the password to the OS keyring")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := writeDefaultSettings(); err != nil {
		return err
	}

	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if k.Initialized() {
		return core.ErrAlreadyExists
	}

	password, err := getNewPassword(settings.AutoUnlockEnv, "Enter new password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	if err := k.Create(string(password)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if initSaveKeyring {
		if err := keyring.SavePassword(k.StoreID(), string(password)); err != nil {
			return fmt.Errorf("failed to save to keyring: %w", err)
		}
		fmt.Fprintln(out, muted("Password saved to keyring"))
	}

	fmt.Fprintf(out, "%s %s\n", success("Initialized"), settings.StorePath())
	return nil
}

// writeDefaultSettings saves the active settings when no settings file
// exists yet
func writeDefaultSettings() error {
	path := settingsFile
	if path == "" {
		path = config.SettingsPath()
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log.Infof("Writing settings to %s", path)
	return settings.Save(path)
}
