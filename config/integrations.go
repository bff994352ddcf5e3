package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"newbusiness/models"
)

// IntegrationsFile is the on-disk layout of INTEGRATIONS_FILE:
//
//	integrations:
//	  agency-crm:
//	    base_url: http://localhost:5000/api
//	    api_key: ...
//	    webhook_secret: ...
//	  tv-planner:
//	    base_url: http://localhost:5004/api
type IntegrationsFile struct {
	Integrations map[string]SourceConfig `yaml:"integrations"`
}

// LoadIntegrationsFile reads per-source settings from a YAML file.
// Unknown source keys are rejected.
func LoadIntegrationsFile(path string) (map[models.Source]SourceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f IntegrationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	out := make(map[models.Source]SourceConfig, len(f.Integrations))
	for key, sc := range f.Integrations {
		src, ok := models.ParseSource(key)
		if !ok {
			return nil, fmt.Errorf("unknown integration %q", key)
		}
		out[src] = sc
	}
	return out, nil
}
