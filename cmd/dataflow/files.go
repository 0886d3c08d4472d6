package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"dataflow/pkg/contracts/domain"
)

// maxParallelReads bounds concurrent file reads
const maxParallelReads = 4

// loadUploads reads files concurrently, keeping the order of paths
func loadUploads(ctx context.Context, paths []string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			upload, err := loadUpload(path)
			if err != nil {
				return err
			}
			uploads[i] = upload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploads, nil
}

func loadUpload(path string) (domain.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return domain.Upload{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// writeDownload stores d at target. A directory target, or an empty one,
// keeps the download's own filename.
func writeDownload(d *domain.Download, target string) (string, error) {
	path := target
	if path == "" {
		path = d.Filename
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, d.Filename)
	}
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
