package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
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
	"epifeed/internal/model"
	"epifeed/internal/providers"
	"epifeed/internal/source"
)

type metaFile struct {
	GeneratedAt string            `json:"generated_at"`
	Region      string            `json:"region"`
	Offline     bool              `json:"offline"`
	Providers   []providerMeta    `json:"providers"`
	Failures    map[string]string `json:"failures,omitempty"`
}

type providerMeta struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Rows        int    `json:"rows"`
	RegionRows  int    `json:"region_rows"`
	FirstDate   string `json:"first_date,omitempty"`
	LastDate    string `json:"last_date,omitempty"`
	Origin      string `json:"origin"`
	Fallback    bool   `json:"fallback"`
	FetchedAt   string `json:"fetched_at"`
	PayloadSize string `json:"payload_size"`
}

type regionFile struct {
	GeneratedAt string           `json:"generated_at"`
	Provider    string           `json:"provider"`
	Region      string           `json:"region"`
	DateColumn  string           `json:"date_column"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
}

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "publisher build failed:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "publisher",
	Short:         "Publish normalized region series as static JSON",
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

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write meta.json and one <provider>.json per provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")
		region, _ := cmd.Flags().GetString("region")
		providerList, _ := cmd.Flags().GetString("providers")
		offline, _ := cmd.Flags().GetBool("offline")
		if cmd.Flags().Changed("db") {
			cfg.Archive.Path, _ = cmd.Flags().GetString("db")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return build(ctx, outDir, region, providerList, offline)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/epifeed.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug and info records")

	buildCmd.Flags().String("out", "site/data", "output directory")
	buildCmd.Flags().String("region", "US", "region key passed to each provider's region rule")
	buildCmd.Flags().String("providers", "", "comma-separated providers (default: all)")
	buildCmd.Flags().Bool("offline", false, "read only archived payloads")
	buildCmd.Flags().String("db", "", "sqlite archive path")

	rootCmd.AddCommand(buildCmd)
}

func build(ctx context.Context, outDir, region, providerList string, offline bool) error {
	variants, err := providers.ParseVariants(providerList)
	if err != nil {
		return err
	}
	if offline && strings.TrimSpace(cfg.Archive.Path) == "" {
		return fmt.Errorf("offline build needs an archive path")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	st, err := openArchive(cfg.Archive.Path, cfg.Archive.Keep)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher := fetch.New(cfg.FetchConfig(), fetch.WithArchive(st), fetch.WithRefresher(cfg.Refresher()))
	perVariant := func(v providers.Variant) []source.Option {
		key := providers.ArchiveKey(v)
		switch {
		case offline:
			return []source.Option{source.WithDescriptor(fetch.Archive(key))}
		case cfg.Archive.Path != "" && cfg.Archive.Fallback:
			return []source.Option{source.WithFallback(fetch.Archive(key))}
		default:
			return nil
		}
	}
	cache := source.NewCache(cfg.Cache.Size, cfg.Cache.TTL,
		source.BuilderWith(perVariant, source.WithFetcher(fetcher), source.WithSettings(cfg.ProviderSettings())))

	ready, failed := source.LoadAll(ctx, variants, cache.Get)

	now := time.Now().UTC()
	meta := metaFile{
		GeneratedAt: now.Format(time.RFC3339),
		Region:      region,
		Offline:     offline,
		Providers:   make([]providerMeta, 0, len(ready)),
	}
	for _, v := range variants {
		src, ok := ready[v]
		if !ok {
			continue
		}
		name := v.String() + ".json"
		regionRows := src.RegionData(region)
		if err := writeJSON(filepath.Join(outDir, name), buildRegionFile(now, src, region, regionRows)); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		meta.Providers = append(meta.Providers, describe(src, name, regionRows.Len()))
	}
	if len(failed) > 0 {
		meta.Failures = make(map[string]string, len(failed))
		for v, err := range failed {
			meta.Failures[v.String()] = err.Error()
		}
		for _, name := range sortedNames(meta.Failures) {
			logger.Error("provider failed", "provider", name, "error", meta.Failures[name])
		}
	}

	if err := writeJSON(filepath.Join(outDir, "meta.json"), meta); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}
	if len(ready) == 0 {
		return fmt.Errorf("no provider could be loaded")
	}

	fmt.Printf("publisher build complete (out=%s ready=%d failed=%d)\n", outDir, len(ready), len(failed))
	return nil
}

func describe(src *source.DataSource, file string, regionRows int) providerMeta {
	meta := providerMeta{
		Name:        src.Variant().String(),
		File:        file,
		Rows:        src.FullData().Len(),
		RegionRows:  regionRows,
		Origin:      src.Origin().String(),
		Fallback:    src.FromFallback(),
		FetchedAt:   src.FetchedAt().UTC().Format(time.RFC3339),
		PayloadSize: humanize.Bytes(uint64(src.PayloadSize())),
	}
	if first, last, ok := src.DateSpan(); ok {
		meta.FirstDate = dates.Format(first)
		meta.LastDate = dates.Format(last)
	}
	return meta
}

func buildRegionFile(now time.Time, src *source.DataSource, region string, table *model.Table) regionFile {
	columns := table.Columns()
	rows := make([]map[string]any, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		row := table.Row(i)
		record := make(map[string]any, len(columns))
		for j, column := range columns {
			record[column] = jsonValue(row[j])
		}
		rows = append(rows, record)
	}
	return regionFile{
		GeneratedAt: now.Format(time.RFC3339),
		Provider:    src.Variant().String(),
		Region:      region,
		DateColumn:  table.DateColumn(),
		Columns:     columns,
		Rows:        rows,
	}
}

func jsonValue(v model.Value) any {
	switch v.Kind {
	case model.KindString:
		return v.Str
	case model.KindInt:
		return v.Int
	case model.KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil
		}
		return v.Float
	case model.KindTime:
		return dates.Format(v.Time)
	default:
		return nil
	}
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
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

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
