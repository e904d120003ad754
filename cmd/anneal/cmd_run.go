package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hupe1980/anneal"
	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/config"
	"github.com/hupe1980/anneal/internal/conv"
	"github.com/hupe1980/anneal/plot"
	"github.com/hupe1980/anneal/result"
	"github.com/hupe1980/anneal/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cluster the rows of a table",
		Long: `Cluster the rows of a delimited numeric table.

The first field of every line is the row name; a line whose first field is
empty is a header and skipped. Inputs and outputs may be local paths,
s3://bucket/key or minio://bucket/key.

Examples:
  anneal run -f data.tsv -c 8 -o clusters.tsv
  anneal run -f s3://lab/yeast.tsv -c 12 -o s3://lab/out/clusters.tsv --seed 7
  anneal run -f data.csv -s , -c 4 -o out.tsv --timeout 10m --db ~/.anneal/runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			file, _ := cmd.Flags().GetString("file")
			outfile, _ := cmd.Flags().GetString("outfile")
			k, _ := cmd.Flags().GetInt("clusters")
			jsonOut, _ := cmd.Flags().GetBool("json")

			start := time.Now()
			summary, err := runClustering(cmd.Context(), cfg, runRequest{
				Input:   file,
				Output:  outfile,
				K:       k,
				Stderr:  cmd.ErrOrStderr(),
				Started: start,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "finished in %s\n", formatElapsed(time.Since(start)))

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows in %d clusters, energy %.6f after %d iterations; wrote %s\n",
				summary.Rows, summary.K, summary.Energy, summary.Iterations, summary.Output)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input table (path, s3://bucket/key or minio://bucket/key)")
	cmd.Flags().StringP("sep", "s", `\t`, "Field separator")
	cmd.Flags().IntP("clusters", "c", 0, "Number of clusters")
	cmd.Flags().Float64P("temp", "t", 20, "Initial temperature")
	cmd.Flags().Float64("cool", 0.9995, "Cooling factor applied after every step")
	cmd.Flags().IntP("max-iter", "m", 1_000_000, "Number of iterations")
	cmd.Flags().StringP("outfile", "o", "", "Assignment output; also the prefix of the cluster charts")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 draws a random seed)")
	cmd.Flags().Bool("plot", true, "Render one SVG chart per cluster")
	cmd.Flags().String("db", "", "SQLite run history path")
	cmd.Flags().Int("workers", 0, "Distance build goroutines (0 = GOMAXPROCS)")
	cmd.Flags().String("cache", "", "Distance cache location (directory, s3://bucket/prefix or minio://bucket/prefix)")
	cmd.Flags().String("zero-range", "zero", "Constant row handling: zero, reject, propagate")
	cmd.Flags().Duration("timeout", 0, "Stop the chain after this duration and keep the current assignment")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus /metrics on this address during the run")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("clusters")
	_ = cmd.MarkFlagRequired("outfile")

	return cmd
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, fn func()) {
		if err == nil && flags.Changed(name) {
			fn()
		}
	}

	set("sep", func() { cfg.Input.Separator, err = flags.GetString("sep") })
	set("temp", func() { cfg.Anneal.Temperature, err = flags.GetFloat64("temp") })
	set("cool", func() { cfg.Anneal.Cooling, err = flags.GetFloat64("cool") })
	set("max-iter", func() { cfg.Anneal.MaxIterations, err = flags.GetInt("max-iter") })
	set("seed", func() { cfg.Anneal.Seed, err = flags.GetUint64("seed") })
	set("plot", func() { cfg.Output.Plot, err = flags.GetBool("plot") })
	set("db", func() { cfg.Output.DB, err = flags.GetString("db") })
	set("workers", func() { cfg.Anneal.Workers, err = flags.GetInt("workers") })
	set("cache", func() { cfg.Cache.Location, err = flags.GetString("cache") })
	set("zero-range", func() { cfg.Anneal.ZeroRange, err = flags.GetString("zero-range") })
	set("timeout", func() { cfg.Anneal.Timeout, err = flags.GetDuration("timeout") })
	set("metrics-addr", func() { cfg.Metrics.Addr, err = flags.GetString("metrics-addr") })

	return err
}

type runRequest struct {
	Input   string
	Output  string
	K       int
	Stderr  io.Writer
	Started time.Time
}

// runSummary is what "anneal run --json" prints.
type runSummary struct {
	RunID       int64    `json:"run_id,omitempty"`
	Input       string   `json:"input"`
	Output      string   `json:"output"`
	Charts      []string `json:"charts,omitempty"`
	Rows        int      `json:"rows"`
	Cols        int      `json:"cols"`
	K           int      `json:"k"`
	Seed        uint64   `json:"seed"`
	Iterations  uint64   `json:"iterations"`
	Accepted    uint64   `json:"accepted"`
	Energy      float64  `json:"energy"`
	Temperature float64  `json:"temperature"`
	Sizes       []int    `json:"sizes"`
	Interrupted bool     `json:"interrupted,omitempty"`
	FromCache   bool     `json:"from_cache,omitempty"`
}

func runClustering(ctx context.Context, cfg *config.Config, req runRequest) (*runSummary, error) {
	logger := newLogger(cfg, req.Stderr)

	sep, err := table.ParseSeparator(cfg.Input.Separator)
	if err != nil {
		return nil, err
	}
	zeroRange, err := anneal.ParseZeroRangePolicy(cfg.Anneal.ZeroRange)
	if err != nil {
		return nil, err
	}
	metric, err := distance.ParseMetric(cfg.Anneal.Metric)
	if err != nil {
		return nil, err
	}

	inStore, inName, err := openObject(ctx, cfg, req.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	outStore, outName, err := openObject(ctx, cfg, req.Output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	tbl, err := table.Load(ctx, inStore, inName, sep)
	if err != nil {
		return nil, err
	}

	opts := []anneal.Option{
		anneal.WithLogger(logger),
		anneal.WithWorkers(cfg.Anneal.Workers),
		anneal.WithZeroRangePolicy(zeroRange),
		anneal.WithMetric(metric),
		anneal.WithMemoryLimit(cfg.Cache.MemoryLimit),
	}
	if cfg.Anneal.Seed != 0 {
		opts = append(opts, anneal.WithSeed(cfg.Anneal.Seed))
	}
	if cfg.Cache.Location != "" {
		cacheStore, err := openPrefix(ctx, cfg, cfg.Cache.Location)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		compression, err := anneal.ParseCompression(cfg.Cache.Compression)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			anneal.WithDistanceCache(cacheStore, compression),
			anneal.WithCacheIOLimit(cfg.Cache.IOLimit),
		)
	}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		srv, err := startMetricsServer(cfg.Metrics.Addr, reg)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.InfoContext(ctx, "serving metrics", "addr", srv.Addr())
		opts = append(opts, anneal.WithMetricsObserver(NewPrometheusObserver(reg)))
	}

	c, err := anneal.New(ctx, tbl, anneal.Config{
		K:             req.K,
		Temperature:   cfg.Anneal.Temperature,
		Cooling:       cfg.Anneal.Cooling,
		MaxIterations: cfg.Anneal.MaxIterations,
	}, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	runCtx := ctx
	if cfg.Anneal.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Anneal.Timeout)
		defer cancel()
	}

	res, err := c.Run(runCtx)
	interrupted := anneal.Interrupted(err)
	if err != nil && !interrupted {
		return nil, err
	}
	if interrupted {
		logger.WarnContext(ctx, "chain stopped early, writing the current assignment",
			"iterations", res.Iterations,
			"of", cfg.Anneal.MaxIterations,
		)
	}

	// Outputs are written even when the chain was interrupted.
	outCtx := context.WithoutCancel(ctx)

	if err := result.Save(outCtx, outStore, outName, res.Names, res.Clusters, sep); err != nil {
		return nil, err
	}

	summary := &runSummary{
		Input:       req.Input,
		Output:      req.Output,
		Rows:        tbl.Len(),
		Cols:        tbl.Dim(),
		K:           req.K,
		Seed:        res.Seed,
		Iterations:  res.Iterations,
		Accepted:    res.Accepted,
		Energy:      res.Energy,
		Temperature: res.Temperature,
		Sizes:       res.Sizes,
		Interrupted: interrupted,
		FromCache:   c.FromCache(),
	}

	if cfg.Output.Plot {
		prefix := strings.TrimSuffix(outName, filepath.Ext(outName))
		charts, err := plot.Render(outCtx, outStore, prefix, c.Data(), res.Clusters, req.K)
		if err != nil {
			return nil, err
		}
		summary.Charts = charts
	}

	if cfg.Output.DB != "" {
		id, err := saveHistory(outCtx, cfg, req, summary, res)
		if err != nil {
			return nil, err
		}
		summary.RunID = id
	}

	return summary, nil
}

func saveHistory(ctx context.Context, cfg *config.Config, req runRequest, summary *runSummary, res *anneal.Result) (int64, error) {
	iterations, err := conv.Uint64ToInt(res.Iterations)
	if err != nil {
		return 0, err
	}

	db, err := result.OpenSQLite(ctx, cfg.Output.DB)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return db.SaveRun(ctx, result.Run{
		StartedAt:        req.Started,
		FinishedAt:       time.Now(),
		Input:            req.Input,
		Rows:             summary.Rows,
		Cols:             summary.Cols,
		K:                req.K,
		Temperature:      cfg.Anneal.Temperature,
		Cooling:          cfg.Anneal.Cooling,
		MaxIter:          cfg.Anneal.MaxIterations,
		Seed:             res.Seed,
		Iterations:       iterations,
		Accepted:         res.Accepted,
		Rejected:         res.Rejected,
		FinalTemperature: res.Temperature,
		Energy:           res.Energy,
		Params: map[string]any{
			"output":      req.Output,
			"separator":   cfg.Input.Separator,
			"zero_range":  cfg.Anneal.ZeroRange,
			"metric":      cfg.Anneal.Metric,
			"cache":       cfg.Cache.Location,
			"interrupted": summary.Interrupted,
			"from_cache":  summary.FromCache,
		},
	}, res.Names, res.Clusters)
}

// formatElapsed renders d as "H h M min S sec MS milli sec".
func formatElapsed(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d h %d min %d sec %d milli sec",
		ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
