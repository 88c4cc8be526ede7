package services

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// DefinitionSeed is one attribute definition in a seed file
type DefinitionSeed struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options,omitempty"`
}

// seedFile is the layout of a definition seed file:
//
//	attributes:
//	  - name: priority
//	    type: select
//	    options: [low, medium, high]
type seedFile struct {
	Attributes []DefinitionSeed `yaml:"attributes"`
}

// LoadDefinitionSeeds parses a YAML seed file into definitions
func LoadDefinitionSeeds(r io.Reader) ([]*entities.AttributeDefinition, error) {
	var file seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse seed file")
	}

	defs := make([]*entities.AttributeDefinition, 0, len(file.Attributes))
	for i, seed := range file.Attributes {
		typ, err := entities.ParseAttributeType(seed.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "seed %d (%s)", i, seed.Name)
		}
		def := &entities.AttributeDefinition{Name: seed.Name, Type: typ, Options: seed.Options}
		if err := def.Validate(); err != nil {
			return nil, errors.Wrapf(err, "seed %d (%s)", i, seed.Name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadDefinitionSeedFile parses the seed file at path
func LoadDefinitionSeedFile(path string) ([]*entities.AttributeDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open seed file")
	}
	defer f.Close()

	return LoadDefinitionSeeds(f)
}

// SeedDefinitions creates the definitions whose names do not exist yet and
// returns how many were created. Existing definitions are left unchanged.
func SeedDefinitions(ctx context.Context, svc DefinitionServiceInterface, defs []*entities.AttributeDefinition) (int, error) {
	created := 0
	for _, def := range defs {
		_, err := svc.GetByName(ctx, def.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return created, err
		}

		if err := svc.Create(ctx, def.Clone()); err != nil {
			return created, errors.Wrapf(err, "failed to seed attribute %q", def.Name)
		}
		created++
	}
	return created, nil
}
