package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ameotech/triage/internal/domain"
)

// SeedFile is the YAML layout of a content seed file.
type SeedFile struct {
	CaseStudies []domain.ContentItem `yaml:"case_studies"`
	Jobs        []domain.ContentItem `yaml:"jobs"`
}

// SeedContent upserts every item in the YAML file at path. Items take their
// kind from the section they appear in. It returns the number of items written.
func SeedContent(ctx context.Context, repo Repository, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read content seed: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse content seed: %w", err)
	}

	n := 0
	upsert := func(kind domain.ContentKind, items []domain.ContentItem) error {
		for i := range items {
			item := items[i]
			item.Kind = kind
			if err := repo.UpsertContent(ctx, &item); err != nil {
				return fmt.Errorf("seed %s %q: %w", kind, item.Slug, err)
			}
			n++
		}
		return nil
	}
	if err := upsert(domain.ContentCaseStudy, seed.CaseStudies); err != nil {
		return n, err
	}
	if err := upsert(domain.ContentJob, seed.Jobs); err != nil {
		return n, err
	}

	slog.Info("Content seeded", "path", path, "items", n)
	return n, nil
}
