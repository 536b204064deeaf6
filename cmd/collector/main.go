package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"epifeed/internal/archive"
	"epifeed/internal/archive/sqlite"
	"epifeed/internal/config"
	"epifeed/internal/dates"
	"epifeed/internal/fetch"
	"epifeed/internal/logger"
	"epifeed/internal/providers"
	"epifeed/internal/source"
	"epifeed/internal/watch"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "collector",
	Short:         "Fetch and normalize epidemiological time series",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose || cfg.Logging.Verbose)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load providers and print a per-provider summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		providerList, _ := cmd.Flags().GetString("providers")
		region, _ := cmd.Flags().GetString("region")
		if cmd.Flags().Changed("db") {
			cfg.Archive.Path, _ = cmd.Flags().GetString("db")
		}
		if noRefresh, _ := cmd.Flags().GetBool("no-refresh"); noRefresh {
			cfg.Providers.JHU.Refresh = false
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCollector(ctx, cmd.OutOrStdout(), providerList, region)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the jhu source when the snapshot directory changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetString("region")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), region, debounce)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/epifeed.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug and info records")

	runCmd.Flags().String("providers", "", "comma-separated providers (default: all)")
	runCmd.Flags().String("region", "US", "region key for the region row count")
	runCmd.Flags().String("db", "", "sqlite archive path (empty disables archiving)")
	runCmd.Flags().Bool("no-refresh", false, "skip the snapshot refresh for directory providers")

	watchCmd.Flags().String("region", "US", "region key for the region row count")
	watchCmd.Flags().Duration("debounce", time.Second, "quiet period before rebuilding")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

func runCollector(ctx context.Context, out io.Writer, providerList, region string) error {
	variants, err := providers.ParseVariants(providerList)
	if err != nil {
		return err
	}

	st, err := openArchive(cfg.Archive.Path, cfg.Archive.Keep)
	if err != nil {
		return err
	}
	defer st.Close()

	ready, failed := source.LoadAll(ctx, variants, newBuilder(st))

	for _, v := range variants {
		src, ok := ready[v]
		if !ok {
			continue
		}
		printSummary(out, src, region)
	}
	for _, v := range sortedFailures(failed) {
		logger.Error("provider failed", "provider", v, "error", failed[v])
	}

	fmt.Fprintf(out, "collector done: providers=%d ready=%d failed=%d\n", len(variants), len(ready), len(failed))
	if len(ready) == 0 {
		return errors.New("no provider could be loaded")
	}
	return nil
}

func newBuilder(st archive.Archive) source.Builder {
	fetcher := fetch.New(cfg.FetchConfig(), fetch.WithArchive(st), fetch.WithRefresher(cfg.Refresher()))
	return source.BuilderWith(func(v providers.Variant) []source.Option {
		if cfg.Archive.Path == "" || !cfg.Archive.Fallback {
			return nil
		}
		return []source.Option{source.WithFallback(fetch.Archive(providers.ArchiveKey(v)))}
	}, source.WithFetcher(fetcher), source.WithSettings(cfg.ProviderSettings()))
}

// runWatch rebuilds the Johns Hopkins source whenever a new daily report
// lands in the snapshot directory.
func runWatch(ctx context.Context, out io.Writer, region string, debounce time.Duration) error {
	st, err := openArchive(cfg.Archive.Path, cfg.Archive.Keep)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg.Providers.JHU.Refresh = false
	cache := source.NewCache(cfg.Cache.Size, cfg.Cache.TTL, newBuilder(st))

	if src, err := cache.Get(ctx, providers.JohnsHopkins); err != nil {
		logger.Warn("initial load failed", "provider", providers.JohnsHopkins, "error", err)
	} else {
		printSummary(out, src, region)
	}

	jhuCfg := cfg.Providers.JHU
	return watch.Run(ctx, watch.Config{
		Dir:      filepath.Join(jhuCfg.Root, jhuCfg.Dir),
		Pattern:  jhuCfg.Pattern,
		Debounce: debounce,
	}, func(ctx context.Context, path string) {
		logger.Info("new snapshot file", "file", path)
		src, err := cache.Refresh(ctx, providers.JohnsHopkins)
		if err != nil {
			logger.Error("rebuild failed", "provider", providers.JohnsHopkins, "error", err)
			return
		}
		printSummary(out, src, region)
	})
}

func printSummary(out io.Writer, src *source.DataSource, region string) {
	span := "no dated rows"
	if first, last, ok := src.DateSpan(); ok {
		span = dates.Format(first) + " .. " + dates.Format(last)
	}
	origin := src.Origin().String()
	if src.FromFallback() {
		origin += " (fallback)"
	}
	fmt.Fprintf(out, "%-14s rows=%-8s region[%s]=%-6d span=%s size=%s fetched=%s origin=%s\n",
		src.Variant(),
		humanize.Comma(int64(src.FullData().Len())),
		region,
		src.RegionData(region).Len(),
		span,
		humanize.Bytes(uint64(src.PayloadSize())),
		humanize.Time(src.FetchedAt()),
		origin,
	)
	if logger.IsVerbose() {
		logger.Debug("columns", "provider", src.Variant(), "columns", strings.Join(src.FullData().Columns(), ","))
	}
}

func sortedFailures(failed map[providers.Variant]error) []providers.Variant {
	keys := make([]providers.Variant, 0, len(failed))
	for v := range failed {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func openArchive(path string, keep int) (archive.Archive, error) {
	if strings.TrimSpace(path) == "" {
		return &archive.NopArchive{}, nil
	}
	st, err := sqlite.New(path, keep)
	if err != nil {
		return nil, err
	}
	return st, nil
}
