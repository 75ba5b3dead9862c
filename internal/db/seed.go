package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document accepted by ImportSeed. Records default to
// active unless they say otherwise.
type Seed struct {
	Stores    []seedStore    `yaml:"stores"`
	Actors    []seedActor    `yaml:"actors"`
	Templates []seedTemplate `yaml:"templates"`
}

type seedStore struct {
	models.Store `yaml:",inline"`
	Active       *bool `yaml:"active"`
}

type seedActor struct {
	models.Actor `yaml:",inline"`
	Active       *bool `yaml:"active"`
}

type seedTemplate struct {
	models.Template `yaml:",inline"`
	Active          *bool `yaml:"active"`
}

// SeedResult counts the records written by ImportSeed.
type SeedResult struct {
	Stores    int
	Actors    int
	Templates int
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}

// ImportSeed upserts the stores, actors and templates of a YAML seed document
// in a single transaction. Unknown keys are rejected.
func (db *DB) ImportSeed(ctx context.Context, r io.Reader) (SeedResult, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return SeedResult{}, fmt.Errorf("failed to parse seed: %w", err)
	}

	var res SeedResult
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range seed.Stores {
			s := &seed.Stores[i].Store
			s.Active = activeOrDefault(seed.Stores[i].Active)
			if err := db.upsertStore(ctx, tx, s); err != nil {
				return fmt.Errorf("store %q: %w", s.Name, err)
			}
			res.Stores++
		}
		for i := range seed.Actors {
			a := &seed.Actors[i].Actor
			a.Active = activeOrDefault(seed.Actors[i].Active)
			if err := db.upsertActor(ctx, tx, a); err != nil {
				return fmt.Errorf("actor %q: %w", a.Name, err)
			}
			res.Actors++
		}
		for i := range seed.Templates {
			t := &seed.Templates[i].Template
			t.Active = activeOrDefault(seed.Templates[i].Active)
			if err := db.createTemplate(ctx, tx, t, true); err != nil {
				return fmt.Errorf("template %q: %w", t.Title, err)
			}
			res.Templates++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	db.triggerChange(ctx)
	return res, nil
}
