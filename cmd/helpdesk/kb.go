package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/h1v3-io/helpdesk/internal/kb"
	"github.com/h1v3-io/helpdesk/internal/store"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func newKBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Search and maintain the knowledge base",
	}
	cmd.AddCommand(newKBSearchCmd(a), newKBShowCmd(a), newKBImportCmd(a), newKBSeedCmd(a))
	return cmd
}

func newKBSearchCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <words>...",
		Short: "Search knowledge-base articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.cfg.KB.Limit
			}
			if limit < 1 || limit > 10 {
				return fmt.Errorf("--limit must be between 1 and 10")
			}
			query := strings.Join(args, " ")
			articles, err := a.client().SearchKB(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, articles)
			}
			if len(articles) == 0 {
				fmt.Fprintf(out, "No articles match %q.\n", query)
				return nil
			}
			rows := make([][]string, 0, len(articles))
			for _, art := range articles {
				rows = append(rows, []string{art.ID, truncate(art.Title, 48), string(art.Category), art.MatchLabel()})
			}
			printTable(out, []string{"ID", "TITLE", "CATEGORY", "MATCH"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of articles, 1-10 (default kb.limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newKBShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := a.client().GetKBArticle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s · %d views · %d found it helpful\n\n%s\n",
				art.Title, art.Category, art.Views, art.HelpfulCount, art.Content)
			return nil
		},
	}
}

func newKBImportCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "import <url-or-file>...",
		Short: "Import HTML pages into the development backend's knowledge base",
		Long: `Fetches each page (or reads each local HTML file), extracts the readable
text and stores it as an article in the database named by server.db_path.
Importing the same source again updates its article.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !protocol.TicketCategory(category).Valid() {
				return fmt.Errorf("invalid --category %q", category)
			}
			st, err := store.NewSQLiteStore(a.cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			im := kb.NewImporter(st, a.logger)
			for _, src := range args {
				art, err := im.Import(cmd.Context(), src, protocol.TicketCategory(category))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s %q (%d keywords)\n", art.ID, art.Title, len(art.Keywords))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", string(protocol.CategoryOther), "article category")
	return cmd
}

func newKBSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load articles from a YAML seed file into the development backend's database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, err := kb.LoadSeed(args[0])
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(a.cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := kb.Seed(cmd.Context(), st, articles); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d articles into %s\n", len(articles), a.cfg.Server.DBPath)
			return nil
		},
	}
}
