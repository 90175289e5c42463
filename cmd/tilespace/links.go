package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
)

var (
	linkTitle   string
	linkSummary string
	noteContent string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage links and notes inside tiles",
}

var linksAddCmd = &cobra.Command{
	Use:   "add [tile-id] [url]",
	Short: "Append a link to a tile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			link, err := s.CreateLink(ctx, args[0], store.LinkDraft{
				Title:   linkTitle,
				URL:     args[1],
				Summary: linkSummary,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Link added: %s (%s)\n", link.ID, link.URLString())
			return nil
		})
	},
}

var linksNoteCmd = &cobra.Command{
	Use:   "note [tile-id]",
	Short: "Append a markdown note to a tile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			doc, err := s.CreateDocument(ctx, args[0], store.DocumentDraft{
				Title:   linkTitle,
				Content: noteContent,
				Summary: linkSummary,
			})
			if err != nil {
				return err
			}
			// 空文档在关闭编辑器时删除
			if err := s.CloseDocument(ctx, doc.ID); err != nil {
				return err
			}
			if services.IsDocumentEmpty(*doc) {
				fmt.Fprintln(cmd.OutOrStdout(), "Empty note discarded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note added: %s\n", doc.ID)
			return nil
		})
	},
}

var linksRmCmd = &cobra.Command{
	Use:   "rm [link-id]",
	Short: "Delete a link or note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s *store.Store) error {
			if err := s.DeleteLink(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Link deleted: %s\n", args[0])
			return nil
		})
	},
}

var linksMvCmd = &cobra.Command{
	Use:   "mv [link-id] [tile-id]",
	Short: "Move a link to the end of another tile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s *store.Store) error {
			return s.MoveLink(ctx, args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.AddCommand(linksAddCmd, linksNoteCmd, linksRmCmd, linksMvCmd)
	linksCmd.PersistentFlags().StringVar(&linkTitle, "title", "", "Title")
	linksCmd.PersistentFlags().StringVar(&linkSummary, "summary", "", "Summary")
	linksNoteCmd.Flags().StringVar(&noteContent, "content", "", "Markdown content")
}
