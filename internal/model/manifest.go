package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/vitaltriage/internal/features"
	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

// Manifest lists the models served together.
type Manifest struct {
	Models []Entry `yaml:"models"`
}

// Entry is one manifest line. Relative paths resolve against the manifest's
// directory.
type Entry struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	Path string `yaml:"path"`
}

// ReadManifest parses the YAML manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Models) == 0 {
		return nil, fmt.Errorf("manifest %s lists no models", path)
	}

	dir := filepath.Dir(path)
	seen := make(map[string]struct{}, len(m.Models))
	for i := range m.Models {
		e := &m.Models[i]
		if e.Path == "" {
			return nil, fmt.Errorf("manifest entry %d: path is required", i)
		}
		if e.Name == "" {
			e.Name = string(e.Kind)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("manifest entry %d: name or kind is required", i)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("manifest lists model %q twice", e.Name)
		}
		seen[e.Name] = struct{}{}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(dir, e.Path)
		}
	}
	return &m, nil
}

// Load reads every model in the manifest and checks it against s. The
// returned models are ready for triage.NewEngine, in manifest order.
func Load(manifestPath string, s *features.Schema) ([]triage.Model, error) {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	models := make([]triage.Model, 0, len(m.Models))
	var errs []error
	for _, e := range m.Models {
		sc, err := loadFile(e, s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		models = append(models, triage.Model{Name: e.Name, Scorer: sc})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return models, nil
}

func loadFile(e Entry, s *features.Schema) (Scorer, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", e.Name, err)
	}
	defer f.Close()

	sc, err := Decode(e.Name, f, s)
	if err != nil {
		return nil, err
	}
	if e.Kind != "" && kindOf(sc) != e.Kind {
		return nil, fmt.Errorf("model %s: manifest says %s, file holds %s", e.Name, e.Kind, kindOf(sc))
	}
	return sc, nil
}

func kindOf(sc Scorer) Kind {
	switch sc.(type) {
	case *LogisticRegression:
		return KindLogisticRegression
	case *RandomForest:
		return KindRandomForest
	default:
		return ""
	}
}
