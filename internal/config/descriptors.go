package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dev.consensus.engine/internal/models"
)

// descriptorFile is the on-disk shape of the model-descriptor document:
// a map keyed by model id plus an ordered default selection, per spec.md §6.
// Adapted from the teacher's LoadMultiProviderConfig/substituteEnvVars
// env-substitution idiom, narrowed to the one document this engine needs.
type descriptorFile struct {
	Models        map[string]*models.ModelDescriptor `yaml:"models"`
	DefaultModels []string                           `yaml:"default_models"`
}

// DescriptorSet is the validated, loaded result of a model-descriptor file.
type DescriptorSet struct {
	Models        map[string]*models.ModelDescriptor
	DefaultModels []string
}

// LoadModelDescriptors reads and validates the model-descriptor YAML file at
// path. Invalid or duplicate ids abort startup (spec.md §6). A descriptor
// whose credential_ref does not resolve to a non-empty environment variable
// is forced to enabled=false rather than rejected outright (spec.md §3
// invariant on ModelDescriptor).
func LoadModelDescriptors(path string) (*DescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model descriptor file: %w", err)
	}

	var doc descriptorFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model descriptor file: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("model descriptor file declares no models")
	}

	for id, d := range doc.Models {
		if id == "" {
			return nil, fmt.Errorf("model descriptor file contains an empty id")
		}
		d.ID = id
		if d.CredentialRef == "" || os.Getenv(d.CredentialRef) == "" {
			d.Enabled = false
		}
	}

	for _, id := range doc.DefaultModels {
		if _, ok := doc.Models[id]; !ok {
			return nil, fmt.Errorf("default_models references unknown model id %q", id)
		}
	}

	return &DescriptorSet{Models: doc.Models, DefaultModels: doc.DefaultModels}, nil
}

// Enabled returns the subset of descriptors with Enabled=true, in the stable
// order given by DefaultModels followed by any remaining enabled ids.
func (s *DescriptorSet) Enabled() []*models.ModelDescriptor {
	seen := make(map[string]bool, len(s.Models))
	out := make([]*models.ModelDescriptor, 0, len(s.Models))
	for _, id := range s.DefaultModels {
		if d := s.Models[id]; d != nil && d.Enabled && !seen[id] {
			out = append(out, d)
			seen[id] = true
		}
	}
	for id, d := range s.Models {
		if d.Enabled && !seen[id] {
			out = append(out, d)
			seen[id] = true
		}
	}
	return out
}
