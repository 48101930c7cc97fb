package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/keyring"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage the password saved in the OS keyring",
}

var keyringSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Verify and save the password to the OS keyring",
	Args:  cobra.NoArgs,
	RunE:  runKeyringSave,
}

var keyringDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the password from the OS keyring",
	Args:  cobra.NoArgs,
	RunE:  runKeyringDelete,
}

var keyringStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a password is saved",
	Args:  cobra.NoArgs,
	RunE:  runKeyringStatus,
}

func init() {
	keyringCmd.AddCommand(keyringSaveCmd, keyringDeleteCmd, keyringStatusCmd)
	rootCmd.AddCommand(keyringCmd)
}

func runKeyringSave(cmd *cobra.Command, _ []string) error {
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

	// Verify password is correct
	if err := k.Unlock(string(password)); err != nil {
		return err
	}

	if err := keyring.SavePassword(k.StoreID(), string(password)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), success("Password saved to keyring"))
	return nil
}

func runKeyringDelete(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := keyring.DeletePassword(k.StoreID()); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No password stored in keyring")
			return nil
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), success("Password removed from keyring"))
	return nil
}

func runKeyringStatus(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if keyring.HasPassword(k.StoreID()) {
		fmt.Fprintln(cmd.OutOrStdout(), "Password: stored in keyring")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Password: not stored")
	}
	return nil
}
