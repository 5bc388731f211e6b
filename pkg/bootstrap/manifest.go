// Package bootstrap declares type hierarchies and model registrations from a
// YAML manifest.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	models "github.com/goliatone/go-models"
)

// Manifest is the root structure of a models manifest.
type Manifest struct {
	GenericBaseTypes []string           `yaml:"genericBaseTypes"`
	Hierarchy        []TypeDeclaration  `yaml:"hierarchy"`
	Models           []ModelDeclaration `yaml:"models"`
}

// TypeDeclaration declares the ordered super types of a resource type.
type TypeDeclaration struct {
	Type       string   `yaml:"type"`
	SuperTypes []string `yaml:"superTypes"`
}

// ModelDeclaration registers the model built by Factory for Types.
type ModelDeclaration struct {
	Name     string            `yaml:"name"`     // model name used by named resolution, optional
	Factory  string            `yaml:"factory"`  // catalog key, defaults to Name
	Types    []string          `yaml:"types"`    // resource types the model is bound to
	Bindings map[string]string `yaml:"bindings"` // field -> expression
}

// FactoryKey returns the catalog key the declaration refers to.
func (d ModelDeclaration) FactoryKey() string {
	if key := strings.TrimSpace(d.Factory); key != "" {
		return key
	}
	return strings.TrimSpace(d.Name)
}

// Load parses a manifest. Unknown keys are rejected and an empty document
// yields an empty manifest.
func Load(r io.Reader) (Manifest, error) {
	var manifest Manifest
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("bootstrap: parse manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// LoadFile reads and parses the manifest at path.
func LoadFile(path string) (Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("bootstrap: open %s: %w", path, err)
	}
	defer file.Close()

	manifest, err := Load(file)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w (%s)", err, path)
	}
	return manifest, nil
}

// Validate checks the structural rules of the manifest. Factory names are
// checked by Apply, against the catalog.
func (m Manifest) Validate() error {
	for i, decl := range m.Hierarchy {
		if strings.TrimSpace(decl.Type) == "" {
			return fmt.Errorf("bootstrap: hierarchy[%d]: %w", i, models.ErrResourceTypeRequired)
		}
	}
	for i, decl := range m.Models {
		if decl.FactoryKey() == "" {
			return fmt.Errorf("bootstrap: models[%d]: factory or name is required", i)
		}
		if len(decl.Types) == 0 {
			return fmt.Errorf("bootstrap: models[%d] (%s): %w", i, decl.FactoryKey(), models.ErrResourceTypeRequired)
		}
		for field := range decl.Bindings {
			if strings.TrimSpace(field) == "" {
				return fmt.Errorf("bootstrap: models[%d] (%s): binding field must not be empty", i, decl.FactoryKey())
			}
		}
	}
	return nil
}

// ResolverOptions returns the resolver options the manifest configures.
func (m Manifest) ResolverOptions() []models.Option {
	if m.GenericBaseTypes == nil {
		return nil
	}
	return []models.Option{models.WithGenericBaseTypes(m.GenericBaseTypes...)}
}
