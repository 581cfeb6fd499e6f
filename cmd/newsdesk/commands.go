package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"newsdesk/cache"
	"newsdesk/common"
	"newsdesk/deduplication"
	"newsdesk/ingestion"
	"newsdesk/orchestrator"
	"newsdesk/tui"
	"newsdesk/types"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch every subscribed group once and print the results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		printReports(cmd.OutOrStdout(), a.refresher.RefreshAll(cmd.Context()))
		return nil
	},
}

var listSince string

var listCmd = &cobra.Command{
	Use:   "list [group]",
	Short: "Fetch and list articles, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var (
	researchFull  bool
	researchForce bool
	researchNoWeb bool
	researchTUI   bool
)

var researchCmd = &cobra.Command{
	Use:   "research <id|link>",
	Short: "Research one article and print the briefing",
	Long: `Refreshes the subscribed groups, looks the article up by ID or link and
runs the research pipeline on it. A link that matches no subscribed article
is researched on its own, which implies --full.`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or maintain the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print entry counts per namespace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		printStats(cmd.OutOrStdout(), a.cache.Stats())
		return nil
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired entries from the cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.cache.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Read briefings archived to S3",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles with an archived briefing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withArchive(cmd, func(archive summaryArchive) error {
			return listArchive(cmd.Context(), cmd.OutOrStdout(), archive)
		})
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived briefing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(cmd, func(archive summaryArchive) error {
			return showArchived(cmd.Context(), cmd.OutOrStdout(), archive, args[0])
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "newsdesk %s\n", version)
	},
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "age window: 1d, 3d or 7d")

	researchCmd.Flags().BoolVar(&researchFull, "full", false, "extract the full article page")
	researchCmd.Flags().BoolVar(&researchForce, "force", false, "ignore a cached briefing")
	researchCmd.Flags().BoolVar(&researchNoWeb, "no-web", false, "skip the web search")
	researchCmd.Flags().BoolVar(&researchTUI, "tui", false, "show progress in a terminal UI")

	cacheCmd.AddCommand(cacheStatsCmd, cacheSweepCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveShowCmd)
}

// summaryArchive is the read side of common.SummaryArchiver.
type summaryArchive interface {
	ArticleIDs(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, articleID string) (common.ArchivedSummary, error)
}

func withArchive(cmd *cobra.Command, fn func(summaryArchive) error) error {
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.archive == nil {
		return errArchiveDisabled
	}
	return fn(a.archive)
}

var errArchiveDisabled = errors.New("summary archive is not configured, set S3_BUCKET")

func listArchive(ctx context.Context, w io.Writer, archive summaryArchive) error {
	ids, err := archive.ArticleIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "no archived briefings")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARCHIVED\tTITLE")
	for _, id := range ids {
		doc, err := archive.Fetch(ctx, id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t(%v)\n", id, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, doc.ArchivedAt.Local().Format("02 Jan 15:04"), doc.Title)
	}
	return tw.Flush()
}

func showArchived(ctx context.Context, w io.Writer, archive summaryArchive, id string) error {
	doc, err := archive.Fetch(ctx, id)
	if errors.Is(err, common.ErrObjectNotFound) {
		return fmt.Errorf("no archived briefing for %q", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n%s\n", doc.Title, doc.Link)
	printBriefing(w, orchestrator.Result{ArticleID: doc.ArticleID, Summary: doc.Summary})
	fmt.Fprintf(w, "\n(archived %s)\n", doc.ArchivedAt.Local().Format(time.RFC822))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	window, err := deduplication.ParseAgeWindow(listSince)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var groups []string
	if len(args) == 1 {
		if _, err := a.refresher.RefreshGroup(cmd.Context(), args[0]); err != nil && !errors.Is(err, ingestion.ErrAllSourcesDown) {
			return err
		}
		groups = args
	} else {
		a.refresher.RefreshAll(cmd.Context())
		for _, g := range a.refresher.Groups() {
			groups = append(groups, g.Name)
		}
	}

	out := cmd.OutOrStdout()
	board := a.refresher.Board()
	for _, g := range groups {
		articles, _ := board.View(g, window, time.Now())
		fmt.Fprintf(out, "== %s (%d) ==\n", g, len(articles))
		printArticles(out, articles)
	}
	return nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.refresher.RefreshAll(ctx)
	article, found := resolveArticle(a.refresher.Board(), args[0])
	if !found {
		if !looksLikeLink(args[0]) {
			return fmt.Errorf("no article with ID %q", args[0])
		}
		researchFull = true
	}
	opts := orchestrator.ResearchOptions{
		FullContent:   researchFull,
		Force:         researchForce,
		SkipWebSearch: researchNoWeb,
	}

	session := a.orch.NewSession(ctx)
	defer session.Close()
	phases, err := session.Focus(article, opts)
	if err != nil {
		return err
	}

	if researchTUI {
		final, err := tea.NewProgram(researchModel(session, article, opts, phases)).Run()
		if err != nil {
			return err
		}
		if m, ok := final.(tui.Model); ok && m.Err != nil {
			return m.Err
		}
		return nil
	}
	return printPhases(cmd.OutOrStdout(), phases)
}

// researchModel builds the progress view for a session. Regenerating
// refocuses the session on the same article with Force set.
func researchModel(session *orchestrator.Session, article types.Article, opts orchestrator.ResearchOptions, phases <-chan orchestrator.Phase) tui.Model {
	m := tui.NewModel(article, phases, session.Close)
	m.Retry = func() (<-chan orchestrator.Phase, error) {
		retry := opts
		retry.Force = true
		return session.Focus(article, retry)
	}
	return m
}

// resolveArticle finds ref on the board by ID, then by link. An unknown
// link becomes a standalone article.
func resolveArticle(board *ingestion.Board, ref string) (types.Article, bool) {
	if a, ok := board.Find(ref); ok {
		return a, true
	}
	if a, ok := board.FindByLink(ref); ok {
		return a, true
	}
	link := strings.TrimSpace(ref)
	return types.Article{
		ID:    types.GenerateID(link),
		Title: link,
		Link:  link,
	}, false
}

func looksLikeLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func printPhases(w io.Writer, phases <-chan orchestrator.Phase) error {
	for p := range phases {
		switch p := p.(type) {
		case orchestrator.Failed:
			return p.Err
		case orchestrator.Done:
			printBriefing(w, p.Result)
		default:
			fmt.Fprintf(w, "… %s\n", tui.Describe(p))
		}
	}
	return nil
}

func printBriefing(w io.Writer, res orchestrator.Result) {
	fmt.Fprintf(w, "\n%s\n", res.Summary.Text)
	if len(res.Summary.Related) > 0 {
		fmt.Fprintln(w, "\nRelated:")
		for _, r := range res.Summary.Related {
			fmt.Fprintf(w, "  - %s\n    %s\n", r.Title, r.Link)
		}
	}
	if len(res.Summary.Web) > 0 {
		fmt.Fprintln(w, "\nWeb:")
		for _, r := range res.Summary.Web {
			fmt.Fprintf(w, "  - %s\n    %s\n", r.Title, r.URL)
		}
	}
	if res.FromCache {
		fmt.Fprintf(w, "\n(cached %s)\n", res.GeneratedAt.Local().Format(time.RFC822))
	}
}

func printArticles(w io.Writer, articles []types.Article) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, a := range articles {
		published := "-"
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Local().Format("02 Jan 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, published, a.SourceName, a.Title)
	}
	tw.Flush()
}

func printReports(w io.Writer, reports []ingestion.Report) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSOURCES\tFAILED\tARTICLES\tTOOK")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Group, r.Sources, len(r.Failed), r.Articles, r.Duration.Round(time.Millisecond))
	}
	tw.Flush()
	for _, r := range reports {
		for _, f := range r.Failed {
			fmt.Fprintf(w, "%s: %s: %s\n", r.Group, f.Source, f.Error)
		}
	}
}

func printStats(w io.Writer, stats cache.Stats) {
	kinds := make([]string, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFRESH\tEXPIRED")
	for _, k := range kinds {
		s := stats[cache.Kind(k)]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", k, s.Fresh, s.Expired)
	}
	tw.Flush()
}
