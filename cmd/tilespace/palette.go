package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/store"
)

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Show or change the color palette",
}

var paletteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available palettes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range models.Palettes {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-8s %s\n", p.ID, p.Category, p.Name)
		}
		return nil
	},
}

var paletteSetCmd = &cobra.Command{
	Use:   "set [palette-id]",
	Short: "Switch palette and recolor the current page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !models.IsKnownPalette(args[0]) {
			return fmt.Errorf("unknown palette %q", args[0])
		}
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			s.ChangePalette(args[0])
			// 不等防抖，立即写入
			return s.FlushPalette(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(paletteCmd)
	paletteCmd.AddCommand(paletteListCmd, paletteSetCmd)
}
