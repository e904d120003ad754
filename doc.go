// Package anneal clusters the rows of a numeric table with simulated
// annealing.
//
// Every row is rescaled to [0,1] by its own minimum and maximum. The
// Euclidean distance of every unordered row pair is computed once into a
// packed store. Starting from a random assignment of rows to K clusters, the
// chain repeatedly moves one random row to another random cluster and keeps
// the move by the Metropolis rule on the mean within-cluster distance. The
// temperature decays geometrically after every step.
//
// # Quick Start
//
//	tbl, err := table.Read(f, '\t')
//	if err != nil {
//	    return err
//	}
//
//	c, err := anneal.New(ctx, tbl, anneal.DefaultConfig(8), anneal.WithSeed(42))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	res, err := c.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	_ = res.WriteTSV(os.Stdout, '\t')
//
// # Reproducibility
//
// All randomness of a run comes from one source. WithSeed seeds a PCG
// generator; WithRand injects any source. With the same table, Config and
// seed the result is identical.
//
// # Distance Cache
//
// WithDistanceCache keeps a compressed snapshot of the distance store in a
// blobstore.Store (local directory, S3 or MinIO). Entries are named after a
// SHA-256 fingerprint of the normalized data, so a repeated run over the same
// input skips the quadratic build.
//
// # Observability
//
// WithLogger takes a *Logger (slog based). WithMetricsObserver receives
// build, per-step and run events; BasicMetricsObserver keeps them in atomic
// counters.
package anneal
