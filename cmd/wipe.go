package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/keyring"
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every key and the master password",
	Long: `Delete all stored keys, configuration values and the master password
entry. The keyring entry of the store is removed as well. This cannot be
undone.`,
	Args: cobra.NoArgs,
	RunE: runWipe,
}

var wipeForce bool

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Wipe without confirmation")
	rootCmd.AddCommand(wipeCmd)
}

func runWipe(cmd *cobra.Command, _ []string) error {
	if !wipeForce {
		if !isTerminal() {
			return errors.New("refusing to wipe without --force")
		}
		answer, err := readConfirm(cmd, "Delete all keys? Type 'yes' to confirm: ")
		if err != nil {
			return err
		}
		if answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
			return nil
		}
	}

	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.Wipe(); err != nil {
		return err
	}
	if settings.Keyring {
		if err := keyring.DeletePassword(k.StoreID()); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			log.Warnf("Failed to remove keyring entry: %v", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), success("Store wiped"))
	return nil
}

func readConfirm(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	return readLine(cmd.InOrStdin())
}
