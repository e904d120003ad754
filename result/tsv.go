package result

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/hupe1980/anneal/blobstore"
)

// WriteTSV writes one line per row: the row name and its 1-based cluster.
func WriteTSV(w io.Writer, names []string, clusters []int, sep rune) error {
	if len(names) != len(clusters) {
		return fmt.Errorf("result: %d names for %d cluster ids", len(names), len(clusters))
	}

	bw := bufio.NewWriter(w)
	s := string(sep)

	if _, err := bw.WriteString("Rowname" + s + "Cluster\n"); err != nil {
		return err
	}
	for i, name := range names {
		bw.WriteString(name)
		bw.WriteString(s)
		bw.WriteString(strconv.Itoa(clusters[i] + 1))
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save streams the assignment table to name in store.
func Save(ctx context.Context, store blobstore.Store, name string, names []string, clusters []int, sep rune) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", name, err)
	}
	if err := WriteTSV(w, names, clusters, sep); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit %q: %w", name, err)
	}
	return nil
}
