package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
)

var tileEmoji string

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Inspect and rearrange tiles on the grid",
}

var tilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the grid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			st := s.Snapshot()
			printGrid(cmd.OutOrStdout(), st)
			for _, t := range st.Tiles {
				if !services.TileHasLinks(t) {
					continue
				}
				for _, l := range t.Links {
					label := services.LinkDisplayTitle(l)
					if services.IsURLLink(l) && l.URLString() != label {
						label += " <" + l.URLString() + ">"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "    %2d.%d  [%s] %s  %s\n", t.Position, l.Position, l.Type, label, l.ID)
				}
			}
			return nil
		})
	},
}

var tilesAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a tile in the first empty position",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			tile, err := s.CreateTile(ctx)
			if err != nil {
				return err
			}
			upd := models.TileUpdate{}
			if len(args) == 1 {
				upd.Title = &args[0]
			}
			if tileEmoji != "" {
				upd.Emoji = &tileEmoji
			}
			if upd.IsEmpty() {
				return nil
			}
			return s.UpdateTile(ctx, tile.ID, upd)
		})
	},
}

var tilesRenameCmd = &cobra.Command{
	Use:   "rename [id] [title]",
	Short: "Rename a tile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.RenameTile(ctx, args[0], args[1])
		})
	},
}

var tilesColorCmd = &cobra.Command{
	Use:   "color [id] [index]",
	Short: "Set a tile's color index in the current palette",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid color index %q", args[1])
		}
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.UpdateTileColor(ctx, args[0], index)
		})
	},
}

var tilesSwapCmd = &cobra.Command{
	Use:   "swap [id-a] [id-b]",
	Short: "Swap the positions of two tiles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.SwapTiles(ctx, args[0], args[1])
		})
	},
}

var tilesMoveCmd = &cobra.Command{
	Use:   "move [id] [position]",
	Short: "Move a tile to an empty position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.MoveTile(ctx, args[0], position)
		})
	},
}

var tilesRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a tile and its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.DeleteTile(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(tilesCmd)
	tilesCmd.AddCommand(tilesListCmd, tilesAddCmd, tilesRenameCmd, tilesColorCmd, tilesSwapCmd, tilesMoveCmd, tilesRmCmd)
	tilesAddCmd.Flags().StringVar(&tileEmoji, "emoji", "", "Emoji (defaults to one picked by position)")
}
