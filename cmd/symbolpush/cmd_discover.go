package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/symbolpush/internal/domain-adapters/gateways"
)

func newDiscoverCommand(root *rootOptions) *cobra.Command {
	var suffix string

	cmd := &cobra.Command{
		Use:   "discover [dir]",
		Short: "List native libraries in the build output",
		Long: `List files under dir (default: the configured native library directory) whose
name ends with the symbol suffix. A missing directory lists nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			dir := cfg.NativeLibDir
			if len(args) == 1 {
				dir = args[0]
			}
			if !cmd.Flags().Changed("suffix") {
				suffix = cfg.SymbolSuffix
			}

			seq := gateways.NewArtifactFinder().Discover(dir, gateways.HasSuffix(suffix))
			paths := []string{}
			for path := range seq.All() {
				paths = append(paths, path)
			}
			if err := seq.Err(); err != nil {
				return fmt.Errorf("failed to scan %s: %w", dir, err)
			}

			if root.Output == "json" {
				enc := json.NewEncoder(root.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(paths)
			}
			for _, path := range paths {
				fmt.Fprintln(root.stdout, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&suffix, "suffix", ".so", "file name suffix to match")
	return cmd
}
