package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/crisrs/cris-server/internal/claims"
	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/dedup"
	"github.com/crisrs/cris-server/internal/di"
	"github.com/crisrs/cris-server/internal/di/providers"
	"github.com/crisrs/cris-server/internal/indexing"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/service"
)

// app builds the container lazily so that --help never touches the data directory.
type app struct {
	dataPath string
	envFile  string
	logLevel string

	injector *do.RootScope
}

func (a *app) container() (*do.RootScope, error) {
	if a.injector != nil {
		return a.injector, nil
	}

	var args []string
	if a.dataPath != "" {
		args = append(args, "-data-path", a.dataPath)
	}
	if a.envFile != "" {
		args = append(args, "-env-file", a.envFile)
	}
	if a.logLevel != "" {
		args = append(args, "-log-level", a.logLevel)
	}
	cfg, err := config.Load(flag.NewFlagSet("indexctl", flag.ContinueOnError), args)
	if err != nil {
		return nil, err
	}

	injector := do.New()
	di.Register(injector)
	do.OverrideValue(injector, cfg)
	// One-shot runs are not scraped.
	do.OverrideValue(injector, metrics.New(nil))

	a.injector = injector
	return injector, nil
}

func (a *app) shutdown() {
	if a.injector == nil {
		return
	}
	_ = a.injector.Shutdown()
	a.injector = nil
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:          "indexctl",
		Short:        "Maintain the CRIS search index",
		Long:         "indexctl runs the indexing pipeline's maintenance tasks against the configured data directory.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.dataPath, "data-path", "", "base path of the database and search index")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newReindexCmd(a),
		newIndexCmd(a),
		newDedupCmd(a),
		newDiscoverCmd(a),
		newDuplicatesCmd(a),
		newSearchCmd(a),
		newExtractCmd(a),
	)
	return root, a
}

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the database",
		Long: `Drops every index entry and projects every document again.
Authorship claims are dropped as well; run discover-claims afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inj, err := a.container()
			if err != nil {
				return err
			}
			svc, err := do.Invoke[*indexing.Service](inj)
			if err != nil {
				return err
			}
			n, err := svc.ReindexAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			cmd.Printf("Indexed %d documents.\n", n)
			return nil
		},
	}
}

func newIndexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index <document-id>...",
		Short: "Project the given documents into the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			inj, err := a.container()
			if err != nil {
				return err
			}
			svc, err := do.Invoke[*indexing.Service](inj)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := svc.IndexDocument(cmd.Context(), id); err != nil {
					return fmt.Errorf("index document %d: %w", id, err)
				}
			}
			cmd.Printf("Indexed %d documents.\n", len(ids))
			return nil
		},
	}
}

func newDedupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Run one duplicate scan over the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inj, err := a.container()
			if err != nil {
				return err
			}
			scanner, err := do.Invoke[*dedup.Scanner](inj)
			if err != nil {
				return err
			}
			res, err := scanner.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("duplicate scan failed: %w", err)
			}
			cmd.Printf("Run %s: scanned %d entries in %d pages, recorded %d duplicate pairs.\n",
				res.RunID, res.Scanned, res.Pages, res.Pairs)
			return nil
		},
	}
}

func newDiscoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover-claims",
		Short: "Propose claimers for unresolved author slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inj, err := a.container()
			if err != nil {
				return err
			}
			discovery, err := do.Invoke[*claims.Discovery](inj)
			if err != nil {
				return err
			}
			res, err := discovery.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("claim discovery failed: %w", err)
			}
			cmd.Printf("Run %s: %d entries, %d claims, %d users notified.\n",
				res.RunID, res.Entries, res.Claims, res.Notified)
			return nil
		},
	}
}

func newDuplicatesCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List recorded duplicate suggestions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inj, err := a.container()
			if err != nil {
				return err
			}
			store, err := do.Invoke[*providers.StoreHandle](inj)
			if err != nil {
				return err
			}
			suggestions, err := store.ListDuplicateSuggestions(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				cmd.Println("No duplicate suggestions.")
				return nil
			}
			for _, s := range suggestions {
				cmd.Printf("%d\t%d\t%s\t%s\n", s.DocumentID, s.DuplicateID, s.RunID, s.FoundAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of suggestions")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of suggestions to skip")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		advanced, theses bool
		page, size       int
	)
	cmd := &cobra.Command{
		Use:   "search <token>...",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := a.container()
			if err != nil {
				return err
			}
			svc, err := do.Invoke[*service.SearchService](inj)
			if err != nil {
				return err
			}

			req := service.SearchRequest{Tokens: args, Page: page, Size: size}
			if advanced {
				req.Mode = service.ModeAdvanced
			}
			search := svc.SearchDocuments
			if theses {
				search = svc.SearchTheses
			}

			res, err := search(cmd.Context(), req)
			if err != nil {
				return err
			}
			cmd.Printf("%d results\n", res.Total)
			for _, e := range res.Entries {
				title := e.TitleSr
				if title == "" {
					title = e.TitleOther
				}
				cmd.Printf("%d\t%s\t%s\t%s\n", e.DatabaseID, e.Type, yearString(e.Year), strings.TrimSpace(title))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&advanced, "advanced", false, "parse tokens as an advanced expression")
	cmd.Flags().BoolVar(&theses, "theses", false, "search approved theses only")
	cmd.Flags().IntVar(&page, "page", 0, "0-based page number")
	cmd.Flags().IntVar(&size, "size", 0, "page size")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <document-id> <file-id> <path>",
		Short: "Extract the text of an attached file through Tika and reindex its document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:2])
			if err != nil {
				return err
			}
			inj, err := a.container()
			if err != nil {
				return err
			}
			handle, err := do.Invoke[*providers.ExtractionHandle](inj)
			if err != nil {
				return err
			}
			if handle.Service == nil {
				return fmt.Errorf("extraction disabled: set TIKA_URL")
			}

			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := handle.Service.ExtractFile(cmd.Context(), ids[1], ids[0], f); err != nil {
				return err
			}
			cmd.Printf("Extracted file %d of document %d.\n", ids[1], ids[0])
			return nil
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func yearString(year int) string {
	if year < 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
