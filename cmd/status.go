package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/git"
	"github.com/illarion/keylock/internal/masterkey"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store status",
	Long:  "Show store location, lock state and key count. Does not require a password.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	status, err := k.Status(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, header("Store"))
	if status.Path != "" {
		fmt.Fprintf(out, "   Path:      %s\n", status.Path)
	}
	fmt.Fprintf(out, "   Backend:   %s\n", status.Backend)
	fmt.Fprintf(out, "   Store ID:  %s\n", muted(status.StoreID))
	if !status.Created.IsZero() {
		fmt.Fprintf(out, "   Created:   %s\n", status.Created.Format(time.RFC3339))
	}
	if !status.Modified.IsZero() {
		fmt.Fprintf(out, "   Modified:  %s\n", status.Modified.Format(time.RFC3339))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("Keys"))
	fmt.Fprintf(out, "   State:     %s\n", formatState(status.State))
	if status.Encrypted {
		fmt.Fprintln(out, "   Keys:      encrypted with master secret")
	} else {
		fmt.Fprintln(out, "   Keys:      "+warning("stored in plaintext"))
	}
	fmt.Fprintf(out, "   Count:     %d\n", status.KeyCount)
	fmt.Fprintf(out, "   Config:    %d entries\n", status.ConfigCount)
	if settings.Keyring {
		if status.KeyringSaved {
			fmt.Fprintln(out, "   Keyring:   password saved")
		} else {
			fmt.Fprintln(out, "   Keyring:   "+muted("not saved"))
		}
	}

	if status.GitStatus != nil {
		fmt.Fprint(out, git.FormatStoreFileStatus(status.GitStatus))
	}
	return nil
}

func formatState(state masterkey.State) string {
	switch state {
	case masterkey.StateNoMaster:
		return warning(state.String()) + " " + muted("(run 'keylock init')")
	case masterkey.StateUnlocked:
		return success(state.String())
	default:
		return state.String()
	}
}
