package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/core"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored private keys",
}

var keysAddCmd = &cobra.Command{
	Use:   "add [WIF]",
	Short: "Store a private key",
	Long: `Store a WIF private key under its public key.

The key is read from standard input when not given as an argument, so it
does not end up in shell history. The public key is derived from the private
key; --pub checks it against an expected value.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeysAdd,
}

var keysLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored public keys",
	Args:    cobra.NoArgs,
	RunE:    runKeysLs,
}

var keysGetCmd = &cobra.Command{
	Use:               "get PUBKEY",
	Short:             "Print the private key for a public key",
	Args:              cobra.ExactArgs(1),
	RunE:              runKeysGet,
	ValidArgsFunction: completePublicKeys,
}

var keysRmCmd = &cobra.Command{
	Use:               "rm PUBKEY [PUBKEY...]",
	Short:             "Remove stored keys",
	Args:              cobra.MinimumNArgs(1),
	RunE:              runKeysRm,
	ValidArgsFunction: completePublicKeys,
}

var keysAddPub string

func init() {
	keysAddCmd.Flags().StringVar(&keysAddPub, "pub", "", "Expected public key")
	keysCmd.AddCommand(keysAddCmd, keysLsCmd, keysGetCmd, keysRmCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysAdd(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := ensureUnlocked(k); err != nil {
		return err
	}

	var wif string
	if len(args) == 1 {
		wif = args[0]
	} else {
		wif, err = readSecret(cmd.InOrStdin(), "Private key (WIF): ")
		if err != nil {
			return err
		}
	}

	pub, err := k.AddKey(wif, keysAddPub)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Added"), highlight(pub))
	return nil
}

func runKeysLs(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	pubs, err := k.PublicKeys()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(pubs) == 0 {
		fmt.Fprintln(out, muted("No keys stored"))
		return nil
	}
	for _, pub := range pubs {
		fmt.Fprintln(out, pub)
	}
	return nil
}

func runKeysGet(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := ensureUnlocked(k); err != nil {
		return err
	}

	wif, err := k.PrivateKey(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), wif)
	return nil
}

func runKeysRm(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	out := cmd.OutOrStdout()
	for _, pub := range args {
		if err := k.RemoveKey(pub); err != nil {
			return fmt.Errorf("%s: %w", pub, err)
		}
		fmt.Fprintf(out, "%s %s\n", success("Removed"), highlight(pub))
	}
	return nil
}

// completePublicKeys offers stored public keys not already on the line
func completePublicKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := loadSettings(cmd, args); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	k, err := core.Open(settings)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer k.Close()

	pubs, err := k.PublicKeys()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	seen := make(map[string]bool, len(args))
	for _, a := range args {
		seen[a] = true
	}
	var matches []string
	for _, pub := range pubs {
		if !seen[pub] && strings.HasPrefix(pub, toComplete) {
			matches = append(matches, pub)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}
