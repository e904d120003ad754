package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/hupe1980/anneal/blobstore"
	"github.com/hupe1980/anneal/blobstore/minio"
	"github.com/hupe1980/anneal/blobstore/s3"
	"github.com/hupe1980/anneal/internal/config"
)

// location is a parsed path or object URL.
type location struct {
	Scheme string // "file", "s3" or "minio"
	Bucket string
	Key    string
}

// parseLocation parses a local path, s3://bucket/key or minio://bucket/key.
func parseLocation(s string) (location, error) {
	if s == "" {
		return location{}, fmt.Errorf("empty location")
	}
	for _, scheme := range []string{"s3", "minio"} {
		rest, ok := strings.CutPrefix(s, scheme+"://")
		if !ok {
			continue
		}
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return location{}, fmt.Errorf("missing bucket in %q", s)
		}
		return location{Scheme: scheme, Bucket: bucket, Key: key}, nil
	}
	if strings.Contains(s, "://") {
		return location{}, fmt.Errorf("unsupported location %q (use a path, s3:// or minio://)", s)
	}
	return location{Scheme: "file", Key: s}, nil
}

// openStore returns a store rooted at prefix for the scheme of loc.
func openStore(ctx context.Context, cfg *config.Config, loc location, prefix string) (blobstore.Store, error) {
	switch loc.Scheme {
	case "s3":
		var optFns []func(*awsconfig.LoadOptions) error
		if region := cfg.Storage.S3.Region; region != "" {
			optFns = append(optFns, awsconfig.WithRegion(region))
		}
		return s3.NewFromConfig(ctx, loc.Bucket, prefix, optFns...)
	case "minio":
		m := cfg.Storage.MinIO
		if m.Endpoint == "" {
			return nil, fmt.Errorf("minio endpoint not configured (storage.minio.endpoint or ANNEAL_MINIO_ENDPOINT)")
		}
		return minio.NewFromEndpoint(minio.EndpointConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Region:    m.Region,
			Secure:    m.Secure,
		}, loc.Bucket, prefix)
	default:
		return blobstore.NewLocalStore(prefix), nil
	}
}

// openObject returns the store holding the object at s and its name there.
func openObject(ctx context.Context, cfg *config.Config, s string) (blobstore.Store, string, error) {
	loc, err := parseLocation(s)
	if err != nil {
		return nil, "", err
	}
	if loc.Scheme == "file" {
		store, err := openStore(ctx, cfg, loc, filepath.Dir(loc.Key))
		return store, filepath.Base(loc.Key), err
	}
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return nil, "", fmt.Errorf("missing object key in %q", s)
	}
	store, err := openStore(ctx, cfg, loc, "")
	return store, loc.Key, err
}

// openPrefix returns a store rooted at the directory or bucket prefix s.
func openPrefix(ctx context.Context, cfg *config.Config, s string) (blobstore.Store, error) {
	loc, err := parseLocation(s)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg, loc, loc.Key)
}
