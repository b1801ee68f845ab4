package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"worksheet-sync/internal/enrich"
	"worksheet-sync/internal/export"
	"worksheet-sync/internal/localcache"
	"worksheet-sync/internal/orchestrator"
	"worksheet-sync/internal/providers/onedrive"
	"worksheet-sync/pkg/models"

	"github.com/spf13/cobra"
)

// session is one authorized client run over the orchestrator
type session struct {
	*orchestrator.Orchestrator
	cache *localcache.Cache
}

// startSession builds the orchestrator from configuration and authorizes the user
func (a *app) startSession(ctx context.Context) *session {
	cache := localcache.OpenOrNoop(a.cfg.CachePath, a.logger)

	resolver := onedrive.NewService(a.cfg.OneDriveAPIBase, nil)
	enricher := enrich.NewEnricher(resolver, enrich.NewStore(), a.logger)

	opts := orchestrator.Options{
		Cache:          cache,
		Enricher:       enricher,
		SelectedFolder: a.folder,
		Logger:         &a.logger,
	}
	if a.cfg.APIBase != "" {
		opts.Remote = orchestrator.NewAPIClient(a.cfg.APIBase, a.cfg.HTTPTimeout)
	}

	o := orchestrator.New(opts)
	o.Authorize(ctx, a.user)
	return &session{Orchestrator: o, cache: cache}
}

// close waits for outstanding metadata lookups, reports notices and releases the cache
func (s *session) close(w io.Writer) {
	s.WaitForEnrichment()
	for _, notice := range s.Notices() {
		fmt.Fprintln(w, notice)
	}
	if err := s.cache.Close(); err != nil {
		fmt.Fprintln(w, "close cache:", err)
	}
}

func newSheetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List, add and remove worksheets",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List worksheets in the selected folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			s.WaitForEnrichment()

			sheets := s.Sheets()
			if !all {
				sheets = s.SheetsIn(s.Selected())
			}
			return printSheets(cmd.OutOrStdout(), s, sheets)
		},
	}
	list.Flags().BoolVar(&all, "all", false, "list every folder")

	var input models.SheetInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a worksheet link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())

			sheet, err := s.AddSheet(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sheet.ID, sheet.Embed)
			return nil
		},
	}
	add.Flags().StringVar(&input.Title, "title", "", "worksheet title")
	add.Flags().StringVar(&input.URL, "url", "", "document link")
	add.Flags().StringVar(&input.ID, "id", "", "explicit id (generated when empty)")
	add.Flags().StringVar(&input.Embed, "embed", "", "explicit embed URL (derived from --url when empty)")

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a worksheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			return s.Delete(cmd.Context(), models.PartitionSheet, args[0])
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newFoldersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List, add and remove folders",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			for _, folder := range s.Folders() {
				fmt.Fprintln(cmd.OutOrStdout(), folder)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			name, err := s.AddFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			return s.Delete(cmd.Context(), models.PartitionFolder, args[0])
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open ID",
		Short: "Record that a worksheet was opened and print its embed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())

			overlay, err := s.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			embed := overlay.EmbedURL
			if embed == "" {
				for _, sheet := range s.Sheets() {
					if sheet.ID == args[0] {
						embed = sheet.Embed
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), embed)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every worksheet and folder to an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.startSession(cmd.Context())
			defer s.close(cmd.ErrOrStderr())
			s.WaitForEnrichment()

			sheets := s.Sheets()
			view := export.View{
				Sheets:   sheets,
				Folders:  s.Folders(),
				Overlays: make(map[string]enrich.Overlay, len(sheets)),
			}
			for _, sheet := range sheets {
				if overlay, ok := s.Overlay(sheet.ID); ok {
					view.Overlays[sheet.ID] = overlay
				}
			}

			if output == "" {
				output = export.Filename(time.Now())
			}
			if output == "-" {
				return export.StreamWorkbook(cmd.OutOrStdout(), view)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.StreamWorkbook(f, view); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default worksheets-<timestamp>.xlsx)")
	return cmd
}

func printSheets(w io.Writer, s *session, sheets []models.Sheet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFOLDER\tTITLE\tLAST OPENED\tBY")
	for _, sheet := range sheets {
		overlay, _ := s.Overlay(sheet.ID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			sheet.ID,
			orDash(sheet.Folder),
			sheet.Title,
			orDash(overlay.LastOpened),
			orDash(overlay.LastOpenedBy),
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
