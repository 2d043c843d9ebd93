package portal

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetParam describes a user-supplied path placeholder.
type PresetParam struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required" json:"required"`
}

// PresetEndpoint is a canned explorer request.
type PresetEndpoint struct {
	Name        string        `yaml:"name" json:"name"`
	Method      string        `yaml:"method" json:"method"`
	Path        string        `yaml:"path" json:"path"`
	Accept      string        `yaml:"accept" json:"accept"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Params      []PresetParam `yaml:"params,omitempty" json:"params,omitempty"`
}

type PresetCategory struct {
	Name      string           `yaml:"name" json:"name"`
	Icon      string           `yaml:"icon" json:"icon"`
	Endpoints []PresetEndpoint `yaml:"endpoints" json:"endpoints"`
}

var (
	presetsOnce sync.Once
	presets     []PresetCategory
)

func presetCatalog() []PresetCategory {
	presetsOnce.Do(func() {
		var doc struct {
			Categories []PresetCategory `yaml:"categories"`
		}
		if err := yaml.Unmarshal(presetsYAML, &doc); err != nil {
			// Embedded document; a parse failure is a build defect.
			panic("presets.yaml: " + err.Error())
		}
		presets = doc.Categories
	})
	return presets
}
