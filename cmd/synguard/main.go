// Command synguard analyses a captured flow dump for SYN flooding.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "synguard",
		Short:         "Detect SYN flooding in captured flow records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "YAML configuration file")

	root.AddCommand(newAnalyzeCommand(), newConfigCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "synguard:", err)
		os.Exit(1)
	}
}
