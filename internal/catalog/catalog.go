// Package catalog maps public model ids to a prompt family and a job backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/observability"
)

// Backends a catalog entry can point at.
const (
	BackendRunPod = "runpod"
	BackendEcho   = "echo"
)

// Config locates the catalog file.
type Config struct {
	File string `env:"MODELS_FILE" envDefault:"models.yaml"`
}

// Entry describes one served model.
type Entry struct {
	ID         string `yaml:"id"          validate:"required"`
	Format     string `yaml:"format"      validate:"required"`
	Backend    string `yaml:"backend"     validate:"required,oneof=runpod echo"`
	EndpointID string `yaml:"endpoint_id"`
}

// Catalog is the parsed model catalog file.
type Catalog struct {
	Models []Entry `yaml:"models" validate:"required,min=1,dive"`
}

// Defaults returns the catalog served when no file exists.
func Defaults() *Catalog {
	return &Catalog{
		Models: []Entry{
			{ID: "xwin-70b", Format: "vicuna", Backend: BackendRunPod, EndpointID: ""},
			{ID: "llama2-70b", Format: "llama2", Backend: BackendRunPod, EndpointID: ""},
		},
	}
}

// Load reads the catalog at path. A missing file yields Defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var catalog Catalog
	if unmarshalErr := yaml.Unmarshal(data, &catalog); unmarshalErr != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, unmarshalErr)
	}

	if validateErr := catalog.Validate(); validateErr != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, validateErr)
	}

	return &catalog, nil
}

// Validate checks the entries' fields and rejects duplicate ids.
func (c *Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Models))
	for _, entry := range c.Models {
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("invalid catalog: duplicate model %s", entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}

	return nil
}

// ClientFactory returns the job client for a backend and endpoint.
type ClientFactory func(backend, endpointID string) (domain.JobClient, error)

// FormatChecker reports whether a prompt family is known.
type FormatChecker interface {
	Supports(family string) bool
}

// Build registers every catalog entry in a new Registry.
func Build(ctx context.Context, catalog *Catalog, formats FormatChecker, clients ClientFactory) (*Registry, error) {
	if catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}

	registry := NewRegistry()
	logger := observability.FromContext(ctx)

	for _, entry := range catalog.Models {
		if !formats.Supports(entry.Format) {
			return nil, fmt.Errorf("model %s: unknown prompt format %q", entry.ID, entry.Format)
		}

		client, err := clients(entry.Backend, entry.EndpointID)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", entry.ID, err)
		}

		if registerErr := registry.Register(ctx, domain.ModelRoute{
			ID:     entry.ID,
			Format: entry.Format,
			Client: client,
		}); registerErr != nil {
			return nil, registerErr
		}

		logger.Info("model registered",
			observability.String("model", entry.ID),
			observability.String("format", entry.Format),
			observability.String("backend", entry.Backend),
		)
	}

	return registry, nil
}
