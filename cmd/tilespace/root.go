package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	handler "tilespace-backend/api"
	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/logging"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
)

var (
	verbose bool
	userID  string
	pageID  string

	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilespace",
	Short: "TileSpace backend: tile grid bookmarks and notes",
	Long: `TileSpace keeps links and markdown notes on a grid of up to 25 tiles.
This binary runs the HTTP API locally, applies database migrations and
drives the same state store the web client uses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()

		level := cfg.LogLevel
		if verbose || cfg.Debug {
			level = "debug"
		}
		data, err := logging.New().
			FromBuffer(os.Stderr).
			WithLevel(level).
			Console(true).
			Service("tilespace").
			Make()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = data.Logger
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("TILESPACE_USER"), "Owner id to act as")
	rootCmd.PersistentFlags().StringVarP(&pageID, "page", "p", "", "Page id (defaults to the first page)")
}

// openStore 打开网关并加载 owner 的数据；调用方负责 close
func openStore(ctx context.Context) (*store.Store, func(), error) {
	gw, err := database.NewDatabase(handler.DatabaseConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	s := store.New(gw, store.StaticSession(userID), store.Options{
		PaletteDebounce: cfg.PaletteDebounce,
		Logger:          &logger,
	})
	closeFn := func() {
		s.Close()
		if err := gw.Close(); err != nil {
			logger.Warn().Err(err).Msg("close database")
		}
	}

	if err := s.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	if pageID != "" {
		if err := s.SelectPage(ctx, pageID); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return s, closeFn, nil
}

// withStore runs fn against a loaded store, printing the resulting grid when show is set.
func withStore(cmd *cobra.Command, show bool, fn func(ctx context.Context, s *store.Store) error) error {
	ctx := cmd.Context()
	s, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if show {
		printGrid(cmd.OutOrStdout(), s.Snapshot())
	}
	return nil
}

func printGrid(w io.Writer, st store.State) {
	if page := store.CurrentPage(st); page != nil {
		fmt.Fprintf(w, "Page: %s (%s)\n", page.Title, page.ID)
	}
	fmt.Fprintf(w, "Palette: %s  Capacity: %d  Tiles: %d\n", st.CurrentPaletteID, store.GridCapacity(st), len(st.Tiles))

	// 空位也打印出来；不压缩的删除会留下比容量更靠后的 tile
	byPosition := grid.BuildTilePositionMap(st.Tiles)
	last := store.GridCapacity(st)
	for pos := range byPosition {
		if pos >= last {
			last = pos + 1
		}
	}
	for pos := 0; pos < last; pos++ {
		t, ok := byPosition[pos]
		if !ok {
			fmt.Fprintf(w, "%2d  ·\n", pos)
			continue
		}
		fmt.Fprintf(w, "%2d  %s %-24s %s  %s  (%d links)\n", pos, t.Emoji, t.Title, t.AccentColor, t.ID, services.TileLinkCount(*t))
	}
}
