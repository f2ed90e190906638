package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/eltik/anify-source/internal/config"
	"github.com/eltik/anify-source/internal/database"
	"github.com/eltik/anify-source/internal/history"
	"github.com/eltik/anify-source/internal/locator"
	"github.com/eltik/anify-source/internal/sources"
	"github.com/eltik/anify-source/internal/sources/anify"
	"github.com/eltik/anify-source/internal/sources/httpx"
	"github.com/eltik/anify-source/internal/sources/utils"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile    string
	logLevel   string
	noColor    bool
	debugMode  bool
	sourceName string
	copyFlag   bool
	pageFlag   int
	filterFlag string
	titleFlag  string

	// Global config and logger
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anify-source",
	Short: "Content source adapter for the Anify catalog",
	Long: `anify-source adapts the Anify catalog API into discoverable,
searchable video and book sources, resolving episodes into playable
streams and chapters into page images through opaque locators.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeDirs(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize directories: %v\n", err)
			os.Exit(1)
		}

		loaded, v, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		registerSources(cfg)

		// Hot reload: re-register sources when the config file changes.
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed", "name", e.Name)
			if err := v.Unmarshal(cfg); err != nil {
				logger.Error("Failed to reload config", "error", err)
				return
			}
			registerSources(cfg)
			logger.Info("Sources reloaded")
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.Close(); err != nil && logger != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return sourcesCmd.RunE(cmd, args)
	},
}

// registerSources rebuilds the global registry from the current config.
func registerSources(cfg *config.Config) {
	sources.Clear()

	httpClient := httpx.NewClient(httpx.ClientConfig{
		Timeout:    time.Duration(cfg.Network.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Network.MaxRetries,
		UserAgent:  cfg.Network.UserAgent,
		Debug:      cfg.Advanced.Debug,
		Logger:     logger,
	})

	opts := anify.Options{
		BaseURL:          cfg.Sources.AnifyBaseURL,
		HTTP:             httpClient,
		Logger:           logger,
		Pagination:       anify.PaginationPolicy(cfg.Sources.Pagination),
		ChunkSize:        cfg.Sources.ChunkSize,
		Eligibility:      anify.EligibilityMode(cfg.Sources.Eligibility),
		SubtitleType:     cfg.Sources.SubtitleType,
	}

	for _, src := range []sources.Source{anify.NewAnime(opts), anify.NewManga(opts)} {
		if err := sources.Register(src); err != nil {
			logger.Warn("failed to register source", "name", src.Name(), "error", err)
		} else {
			logger.Debug("registered source", "name", src.Name())
		}
	}
}

// resolveSource picks the named source, or the configured default for
// the kind when no name was given.
func resolveSource(kind sources.MediaKind) (sources.Source, error) {
	name := sourceName
	if name == "" {
		switch kind {
		case sources.KindBook:
			name = cfg.Sources.DefaultBook
		default:
			name = cfg.Sources.DefaultVideo
		}
	}
	return sources.Get(name)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources and their health",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources.CheckAllSources(cmd.Context())
		for _, status := range sources.Statuses() {
			marker := "✗"
			if status.Healthy {
				marker = "✓"
			}
			fmt.Printf("%s %-16s %s (checked %s)\n",
				marker, status.SourceName, status.Status, humanize.Time(status.LastCheck))
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Show the curated discovery sections of a source",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		data, err := src.Discover(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(data)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a source's catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		results, err := src.Search(cmd.Context(), args[0], pageFlag)
		if err != nil {
			return err
		}

		if filterFlag != "" {
			results.Results = fuzzyFilter(filterFlag, results.Results)
		}
		return printJSON(results)
	},
}

// fuzzyFilter narrows results to those whose primary title fuzzy-matches
// the pattern, best matches first.
func fuzzyFilter(pattern string, entries []sources.DiscoverEntry) []sources.DiscoverEntry {
	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Titles.Primary
	}

	matches := fuzzy.Find(pattern, titles)
	filtered := make([]sources.DiscoverEntry, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, entries[m.Index])
	}
	return filtered
}

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Show the detail record for a catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		info, err := src.Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(info)
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media <season-url>",
	Short: "List the episodes or chapters behind a season",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		lists, err := src.Media(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(lists)
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers <locator>",
	Short: "List server options for an episode locator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		video, ok := src.(sources.VideoSource)
		if !ok {
			return fmt.Errorf("source %s does not resolve streams", src.Name())
		}

		servers, err := video.Servers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(servers)
	},
}

var streamsCmd = &cobra.Command{
	Use:   "streams <locator>",
	Short: "Resolve an episode locator into playable streams",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindVideo)
		if err != nil {
			return err
		}

		video, ok := src.(sources.VideoSource)
		if !ok {
			return fmt.Errorf("source %s does not resolve streams", src.Name())
		}

		stream, err := video.Streams(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		recordProgress(history.NewService(database.GetDB()), video, args[0], titleFlag)

		if copyFlag && len(stream.Streams) > 0 {
			if err := clipboard.WriteAll(stream.Streams[0].File); err != nil {
				logger.Warn("failed to copy stream url to clipboard", "error", err)
			} else {
				fmt.Fprintln(os.Stderr, "Stream URL copied to clipboard")
			}
		}
		return printJSON(stream)
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages <locator>",
	Short: "Resolve a chapter locator into page image URLs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveSource(sources.KindBook)
		if err != nil {
			return err
		}

		book, ok := src.(sources.BookSource)
		if !ok {
			return fmt.Errorf("source %s does not resolve pages", src.Name())
		}

		pages, err := book.Pages(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		recordProgress(history.NewService(database.GetDB()), book, args[0], titleFlag)
		return printJSON(pages)
	},
}

// recordProgress writes a progress row for a locator the host just
// resolved successfully. The token format follows the source kind; a
// locator that does not decode is skipped, never fatal to the command.
func recordProgress(svc *history.Service, src sources.Source, loc, title string) {
	codec := locator.Codec{EncodeEntryID: src.Kind() == sources.KindBook}
	token, err := codec.Decode(loc)
	if err != nil {
		logger.Warn("not recording history for undecodable locator", "locator", loc, "error", err)
		return
	}

	if title == "" {
		title = token.EntryID
	}

	if err := svc.Record(database.Progress{
		Locator:    loc,
		EntryID:    token.EntryID,
		EntryTitle: title,
		Kind:       string(src.Kind()),
		SourceName: src.Name(),
		ProviderID: token.ProviderID,
		Ordinal:    token.Ordinal,
	}); err != nil {
		logger.Warn("failed to record history", "locator", loc, "error", err)
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage playback and reading progress",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded progress, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := history.NewService(database.GetDB())
		items, err := svc.List(history.FilterOptions{
			Kind:        sourceKindFilter(),
			SearchQuery: filterFlag,
			Limit:       50,
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			state := fmt.Sprintf("%.0f%%", item.Percent)
			if item.Completed {
				state = "done"
			}
			fmt.Printf("%-6d %-40s %-5s %-6s %s\n",
				item.ID,
				utils.TruncateString(item.EntryTitle, 40),
				item.Kind,
				state,
				humanize.Time(item.UpdatedAt))
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate progress statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := history.NewService(database.GetDB())
		stats, err := svc.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("Items:      %s\n", humanize.Comma(stats.TotalItems))
		fmt.Printf("Videos:     %s\n", humanize.Comma(stats.VideoCount))
		fmt.Printf("Books:      %s\n", humanize.Comma(stats.BookCount))
		fmt.Printf("Completed:  %s\n", humanize.Comma(stats.CompletedCount))
		fmt.Printf("Watch time: %s\n", stats.TotalWatchTime)
		return nil
	},
}

var historyCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale incomplete progress records",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := history.NewService(database.GetDB())
		return svc.Cleanup()
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a progress record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		svc := history.NewService(database.GetDB())
		return svc.DeleteByID(uint(id))
	},
}

func sourceKindFilter() string {
	switch sourceName {
	case "":
		return ""
	default:
		src, err := sources.Get(sourceName)
		if err != nil {
			return ""
		}
		return string(src.Kind())
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&sourceName, "source", "s", "", "source to use (default per command kind)")

	searchCmd.Flags().IntVarP(&pageFlag, "page", "p", 1, "result page to fetch")
	searchCmd.Flags().StringVarP(&filterFlag, "filter", "f", "", "fuzzy-filter results by title")
	streamsCmd.Flags().BoolVar(&copyFlag, "copy", false, "copy the first stream URL to the clipboard")
	streamsCmd.Flags().StringVar(&titleFlag, "title", "", "entry title to record in history")
	pagesCmd.Flags().StringVar(&titleFlag, "title", "", "entry title to record in history")
	historyListCmd.Flags().StringVarP(&filterFlag, "filter", "f", "", "filter by entry title")

	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historyCleanupCmd, historyDeleteCmd)
	rootCmd.AddCommand(sourcesCmd, discoverCmd, searchCmd, infoCmd, mediaCmd, serversCmd, streamsCmd, pagesCmd, historyCmd)
}
