package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opendataplatform/registry/common/models"
)

// Fixtures is the static reference data a registry starts with
type Fixtures struct {
	Vocabularies []models.Vocabulary `yaml:"vocabularies"`
	Tags         []models.Tag        `yaml:"tags"`
	Catalogs     []models.Catalog    `yaml:"catalogs"`
	Users        []models.User       `yaml:"users"`
	Providers    []models.Provider   `yaml:"providers"`
}

// LoadFixtures reads a fixtures YAML file
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return &f, nil
}

// Seed inserts fixtures that are not yet present. Rows that already exist
// are left untouched, so seeding is safe to repeat.
func Seed(ctx context.Context, store Store, f *Fixtures) error {
	now := time.Now().UTC()

	return store.WithTx(ctx, func(tx Tx) error {
		for i := range f.Vocabularies {
			if err := ignoreExisting(tx.CreateVocabulary(ctx, &f.Vocabularies[i])); err != nil {
				return fmt.Errorf("seed vocabulary %s: %w", f.Vocabularies[i].ID, err)
			}
		}
		for i := range f.Tags {
			if err := ignoreExisting(tx.CreateTag(ctx, &f.Tags[i])); err != nil {
				return fmt.Errorf("seed tag %s: %w", f.Tags[i].ID, err)
			}
		}
		for i := range f.Catalogs {
			if err := ignoreExisting(tx.CreateCatalog(ctx, &f.Catalogs[i])); err != nil {
				return fmt.Errorf("seed catalog %s: %w", f.Catalogs[i].ID, err)
			}
		}
		for i := range f.Users {
			if err := ignoreExisting(tx.CreateUser(ctx, &f.Users[i])); err != nil {
				return fmt.Errorf("seed user %s: %w", f.Users[i].ID, err)
			}
		}
		for i := range f.Providers {
			p := f.Providers[i]
			if p.Timestamp.IsZero() {
				p.Timestamp = now
			}
			if err := ignoreExisting(tx.CreateProvider(ctx, &p)); err != nil {
				return fmt.Errorf("seed provider %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func ignoreExisting(err error) error {
	if errors.Is(err, ErrUniqueViolation) {
		return nil
	}
	return err
}
