package artifact

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest records the inputs, gap counts and outputs of one run.
type Manifest struct {
	RunID     string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Treatment string    `yaml:"treatment_date"`
	Radius    float64   `yaml:"radius"`
	CRS       string    `yaml:"crs"`
	// Geographic reports whether the grid artifact is in lon/lat rather
	// than the grid CRS.
	Geographic bool `yaml:"geographic"`

	Inputs    map[string]string `yaml:"inputs,omitempty"`
	Grid      GridStats         `yaml:"grid"`
	Panel     *PanelStats       `yaml:"panel,omitempty"`
	Artifacts map[string]string `yaml:"artifacts"`
}

// GridStats summarises the classified grid.
type GridStats struct {
	Cells     int `yaml:"cells"`
	TreatedID int `yaml:"treated_id"`
	Excluded  int `yaml:"excluded"`
	Donor     int `yaml:"donor"`
}

// PanelStats summarises the panel and the gaps met while building it.
type PanelStats struct {
	Edges         int `yaml:"edges"`
	UnmappedEdges int `yaml:"unmapped_edges"`
	Observations  int `yaml:"observations"`
	OutOfWindow   int `yaml:"out_of_window"`
	Dropped       int `yaml:"dropped_observations"`
	Rows          int `yaml:"rows"`
	ZeroFilled    int `yaml:"zero_filled"`
	MinPeriod     int `yaml:"min_period"`
	MaxPeriod     int `yaml:"max_period"`
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "artifact: encode manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "artifact: decode manifest")
	}
	return &m, nil
}
