// HydroView - runtime dashboard backend for containerized treatment units.
// Loads the state-sequence CSV exports and serves segmented runtime views.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/cache"
	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/segment"
	"github.com/hydroview/hydroview/pkg/source"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	dataDir     string
	policyFlag  string
	includeFlag string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hydroview",
	Short: "HydroView - treatment unit runtime dashboard",
	Long: `HydroView turns the state-sequence CSV exports of a treatment unit
into runtime views: how long the unit spent producing, cleaning, testing,
and how multi-day gaps in the log are accounted for.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

func init() {
	cfg := config.Global().Get()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", cfg.Data.SequencesDir, "Directory holding the sequence CSV exports")
	rootCmd.PersistentFlags().StringVar(&policyFlag, "policy", cfg.Segment.Policy, "Overflow policy (hide, clean_split, raw_split, show_all)")
	rootCmd.PersistentFlags().StringVar(&includeFlag, "include", "", "Comma-separated categories to keep (default: operator view)")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	return ctx, cancel
}

// newSource builds the sequence source: S3 when a bucket is configured,
// the local export directory otherwise.
func newSource(cfg *config.Config) (source.Source, error) {
	if cfg.S3.Bucket != "" {
		return source.NewS3(context.Background(), source.S3Config{
			Region:   cfg.S3.Region,
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		})
	}
	return source.NewDir(dataDir), nil
}

// newBackend builds the configured cache backend.
func newBackend(cfg *config.Config) (cache.Backend, error) {
	if cfg.Cache.Backend == "redis" {
		rcfg := cache.DefaultRedisConfig(cfg.Cache.RedisAddress)
		rcfg.Password = cfg.Cache.RedisPassword
		rcfg.Database = cfg.Cache.RedisDatabase
		rcfg.TTL = cfg.Cache.TTL
		return cache.NewRedis(rcfg)
	}
	return cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
}

// segmentOptions resolves the policy/include flags into options.
func segmentOptions(cfg *config.Config) (segment.Options, error) {
	var opts segment.Options

	policy, err := segment.ParsePolicy(policyFlag)
	if err != nil {
		return opts, err
	}
	opts.Policy = policy

	loc, err := cfg.Location()
	if err != nil {
		return opts, err
	}
	opts.Location = loc

	if includeFlag != "" {
		opts.Include = make(map[model.Category]bool)
		for _, name := range strings.Split(includeFlag, ",") {
			c := model.Category(strings.TrimSpace(name))
			if !c.Valid() {
				return opts, fmt.Errorf("unknown category %q (one of: %s)", name, categoryList())
			}
			opts.Include[c] = true
		}
	} else if !cfg.Segment.ShowManufacturing {
		opts.Include = map[model.Category]bool{
			model.CategoryProduction:  true,
			model.CategoryMaintenance: true,
			model.CategorySystem:      true,
		}
	}
	return opts, nil
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
