package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write store configuration values",
	Long: `Read and write the configuration values kept next to the keys.

Values shared with graphene clients (expiration, proposal_expiration) have
defaults that apply until set. The master password entry is listed but can
only be changed with 'keylock passwd'.`,
}

var configLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List configuration values",
	Args:    cobra.NoArgs,
	RunE:    runConfigLs,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configRmCmd = &cobra.Command{
	Use:   "rm KEY",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRm,
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored configuration values as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigExport,
}

var configImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Set configuration values from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigImport,
}

var configDiffCmd = &cobra.Command{
	Use:   "diff FILE",
	Short: "Compare stored configuration with a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDiff,
}

func init() {
	configCmd.AddCommand(configLsCmd, configGetCmd, configSetCmd, configRmCmd,
		configExportCmd, configImportCmd, configDiffCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigLs(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	items, err := k.Config().Items()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.Key] = true
		value := item.Value
		if item.Key == masterkey.ConfigKey {
			value = muted("(set)")
		}
		fmt.Fprintf(out, "%s = %s\n", highlight(item.Key), value)
	}
	for _, name := range store.ConfigDefaults.Keys() {
		if seen[name] {
			continue
		}
		value, _ := store.ConfigDefaults.Default(name)
		fmt.Fprintf(out, "%s = %s %s\n", highlight(name), value, muted("(default)"))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	value, ok := k.ConfigValue(args[0])
	if !ok {
		return fmt.Errorf("config key %q not set", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.SetConfig(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Set"), highlight(args[0]))
	return nil
}

func runConfigRm(cmd *cobra.Command, args []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.DeleteConfig(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Removed"), highlight(args[0]))
	return nil
}

func runConfigExport(cmd *cobra.Command, _ []string) error {
	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	data, err := exportConfig(k)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigImport(cmd *cobra.Command, args []string) error {
	values, err := readConfigFile(args[0])
	if err != nil {
		return err
	}

	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	out := cmd.OutOrStdout()
	for _, item := range sortedItems(values) {
		if item.Key == masterkey.ConfigKey {
			fmt.Fprintf(out, "%s %s\n", warning("Skipped"), highlight(item.Key))
			continue
		}
		if err := k.SetConfig(item.Key, item.Value); err != nil {
			return fmt.Errorf("%s: %w", item.Key, err)
		}
		fmt.Fprintf(out, "%s %s\n", success("Set"), highlight(item.Key))
	}
	return nil
}

func runConfigDiff(cmd *cobra.Command, args []string) error {
	values, err := readConfigFile(args[0])
	if err != nil {
		return err
	}
	delete(values, masterkey.ConfigKey)
	local, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", args[0], err)
	}

	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	stored, err := exportConfig(k)
	if err != nil {
		return err
	}

	diff := configDiff(args[0], string(stored), string(local))
	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), muted("No differences"))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diff)
	return nil
}

// exportConfig renders the stored config values, without the master
// password entry, as YAML
func exportConfig(k *core.KeyLock) ([]byte, error) {
	items, err := k.Config().Items()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(items))
	for _, item := range items {
		if item.Key != masterkey.ConfigKey {
			values[item.Key] = item.Value
		}
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

func readConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}

func sortedItems(values map[string]string) []store.Item {
	items := make([]store.Item, 0, len(values))
	for k, v := range values {
		items = append(items, store.Item{Key: k, Value: v})
	}
	store.SortItems(items)
	return items
}

// configDiff returns a unified diff from the stored config to the file, or
// an empty string if they are equal
func configDiff(path, stored, local string) string {
	if stored == local {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff
	a, b, lineArray := dmp.DiffLinesToChars(stored, local)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var result strings.Builder
	result.WriteString("--- store\n")
	result.WriteString(fmt.Sprintf("+++ %s\n", path))
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			result.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				result.WriteString("\n")
			}
		}
	}
	return result.String()
}
