package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/keylock/internal/config"
	"github.com/illarion/keylock/internal/core"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the store file to reclaim disk space",
	Long:  "Rewrite the bolt store file to reclaim unused space. Does not require a password.",
	Args:  cobra.NoArgs,
	RunE:  runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, _ []string) error {
	if settings.Backend != config.BackendBolt {
		return core.ErrUnsupported
	}

	k, err := openStore()
	if err != nil {
		return err
	}
	defer k.Close()

	path := settings.StorePath()
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	sizeBefore := info.Size()

	if err := k.Compact(); err != nil {
		return err
	}

	info, err = os.Stat(path)
	if err != nil {
		return err
	}
	sizeAfter := info.Size()

	fmt.Fprintf(cmd.OutOrStdout(), "Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
	return nil
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
