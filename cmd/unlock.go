package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/keyring"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Check the master password",
	Long: `Verify the master password. With --save the password is stored in the
OS keyring and later commands unlock without asking.`,
	Args: cobra.NoArgs,
	RunE: runUnlock,
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Forget the password saved in the OS keyring",
	Args:  cobra.NoArgs,
	RunE:  runKeyringDelete,
}

var unlockSave bool

func init() {
	unlockCmd.Flags().BoolVar(&unlockSave, "save", false, "Save the password to the OS keyring")
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(lockCmd)
}

func runUnlock(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if !k.Initialized() {
		return core.ErrNotInitialized
	}

	password, err := getPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	if err := k.Unlock(string(password)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if unlockSave {
		if err := keyring.SavePassword(k.StoreID(), string(password)); err != nil {
			return fmt.Errorf("failed to save to keyring: %w", err)
		}
		fmt.Fprintln(out, success("Unlocked")+" "+muted("(password saved to keyring)"))
		return nil
	}

	fmt.Fprintln(out, success("Unlocked"))
	return nil
}
