package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/store"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Manage pages",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pages in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			st := s.Snapshot()
			if len(st.Pages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pages")
				return nil
			}
			for _, p := range st.Pages {
				marker := " "
				if st.CurrentPageID != nil && *st.CurrentPageID == p.ID {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d  %-20s %-12s %s\n", marker, p.Position, p.Title, p.PaletteID, p.ID)
			}
			return nil
		})
	},
}

var pagesAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Append a page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := store.DefaultPageTitle
		if len(args) == 1 {
			title = args[0]
		}
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			page, err := s.CreatePage(ctx, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Page created: %s (%s)\n", page.Title, page.ID)
			return nil
		})
	},
}

var pagesRenameCmd = &cobra.Command{
	Use:   "rename [id] [title]",
	Short: "Rename a page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			return s.RenamePage(ctx, args[0], args[1])
		})
	},
}

var pagesRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a page with all of its tiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			if err := s.DeletePage(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Page deleted: %s\n", args[0])
			return nil
		})
	},
}

var pagesResetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Remove every tile from a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			return s.ResetPage(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.AddCommand(pagesListCmd, pagesAddCmd, pagesRenameCmd, pagesRmCmd, pagesResetCmd)
}
