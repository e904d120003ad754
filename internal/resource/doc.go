// Package resource bounds the resources a clustering run may consume.
//
// The Controller covers three concerns:
//
//   - Memory: the packed distance store needs 8*n*(n-1)/2 bytes up front;
//     reservations fail fast with ErrMemoryLimitExceeded instead of letting a
//     large table exhaust the process.
//   - Workers: caps the goroutines used to build the distance store.
//   - IO: a token bucket for distance-cache uploads and downloads.
//
// All methods handle a nil Controller gracefully and become no-ops, so
// limits stay optional:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 2 << 30,
//	    MaxWorkers:       8,
//	})
//	if err := rc.AcquireMemory(bytes); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(bytes)
package resource
