package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/keyring"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master password",
	Long: `Change the master password. Only the master secret is re-encrypted;
stored keys stay as they are.

Without a terminal the current password comes from the unlock environment
variable and the new one from $` + EnvNewPassword + `.`,
	Args: cobra.NoArgs,
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if !k.Initialized() {
		return core.ErrNotInitialized
	}

	current, err := getPassword("Current password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(current)

	if err := k.Unlock(string(current)); err != nil {
		return err
	}

	next, err := getNewPassword(EnvNewPassword, "New password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(next)

	if err := k.ChangePassword(string(current), string(next)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if settings.Keyring && keyring.HasPassword(k.StoreID()) {
		if err := keyring.SavePassword(k.StoreID(), string(next)); err != nil {
			fmt.Fprintln(out, warning("Warning: failed to update keyring: ")+err.Error())
		} else {
			fmt.Fprintln(out, muted("Keyring password updated"))
		}
	}

	fmt.Fprintln(out, success("Password changed"))
	return nil
}
