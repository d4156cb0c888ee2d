package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DateLayout is the layout of every date-valued setting.
const DateLayout = "2006-01-02"

// Config holds the full application configuration.
type Config struct {
	Study     StudyConfig     `yaml:"study" mapstructure:"study"`
	Grid      GridConfig      `yaml:"grid" mapstructure:"grid"`
	Exclusion ExclusionConfig `yaml:"exclusion" mapstructure:"exclusion"`
	Network   NetworkConfig   `yaml:"network" mapstructure:"network"`
	Counts    CountsConfig    `yaml:"counts" mapstructure:"counts"`
	Features  FeaturesConfig  `yaml:"features" mapstructure:"features"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StudyConfig describes the intervention being studied. Coordinates are
// lon/lat. When TreatedArea is set its projected centroid is the treated
// location and TreatedPoint is ignored.
type StudyConfig struct {
	TreatmentDate string      `yaml:"treatment_date" mapstructure:"treatment_date"`
	PeriodDays    int         `yaml:"period_days" mapstructure:"period_days"`
	TreatedPoint  []float64   `yaml:"treated_point" mapstructure:"treated_point"`
	TreatedArea   [][]float64 `yaml:"treated_area" mapstructure:"treated_area"`
	Projection    string      `yaml:"projection" mapstructure:"projection"`
	SRID          int         `yaml:"srid" mapstructure:"srid"`
}

// Treatment parses TreatmentDate.
func (s StudyConfig) Treatment() (time.Time, error) {
	t, err := time.Parse(DateLayout, s.TreatmentDate)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: study.treatment_date %q", s.TreatmentDate)
	}
	return t, nil
}

// GridConfig configures the hexagonal lattice.
type GridConfig struct {
	Radius    float64 `yaml:"radius" mapstructure:"radius"`
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// ExclusionConfig is the lon/lat region whose cells are excluded. Polygon
// takes precedence over BBox (min_lon, min_lat, max_lon, max_lat).
type ExclusionConfig struct {
	BBox    []float64   `yaml:"bbox" mapstructure:"bbox"`
	Polygon [][]float64 `yaml:"polygon" mapstructure:"polygon"`
}

// NetworkConfig locates the road/path network.
type NetworkConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Format  string `yaml:"format" mapstructure:"format"`
	IDField string `yaml:"id_field" mapstructure:"id_field"`
}

// CountsConfig locates the trip count observations. Start and End bound the
// window [start, end); either may be empty.
type CountsConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"`
	Table  string `yaml:"table" mapstructure:"table"`
	Start  string `yaml:"start" mapstructure:"start"`
	End    string `yaml:"end" mapstructure:"end"`
}

// Window parses Start and End. Empty values yield zero times.
func (c CountsConfig) Window() (start, end time.Time, err error) {
	if c.Start != "" {
		if start, err = time.Parse(DateLayout, c.Start); err != nil {
			return start, end, eris.Wrapf(err, "config: counts.start %q", c.Start)
		}
	}
	if c.End != "" {
		if end, err = time.Parse(DateLayout, c.End); err != nil {
			return start, end, eris.Wrapf(err, "config: counts.end %q", c.End)
		}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, eris.Errorf("config: counts window %s..%s is empty", c.Start, c.End)
	}
	return start, end, nil
}

// LandmarkConfig is a named lon/lat location used for distance covariates.
type LandmarkConfig struct {
	Name string  `yaml:"name" mapstructure:"name"`
	Lon  float64 `yaml:"lon" mapstructure:"lon"`
	Lat  float64 `yaml:"lat" mapstructure:"lat"`
}

// FeaturesConfig configures the cell covariates written next to the grid.
type FeaturesConfig struct {
	Landmarks []LandmarkConfig `yaml:"landmarks" mapstructure:"landmarks"`
}

// OutputConfig controls artifact writing.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Geographic bool   `yaml:"geographic" mapstructure:"geographic"`
	XLSX       bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// StoreConfig configures persistence. An empty Driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig tunes the parallel stages.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkSize   int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HEXPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("study.treatment_date", "2022-11-21")
	v.SetDefault("study.period_days", 7)
	v.SetDefault("study.treated_area", [][]float64{
		{13.3875142, 52.5150097},
		{13.3908383, 52.5151272},
		{13.3913958, 52.5103902},
		{13.3882648, 52.5102075},
		{13.3875142, 52.5150097},
	})
	v.SetDefault("study.projection", "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs")
	v.SetDefault("study.srid", 3857)
	v.SetDefault("grid.radius", 500.0)
	v.SetDefault("grid.tolerance", 1e-6)
	v.SetDefault("exclusion.bbox", []float64{13.307318, 52.504083, 13.3315946, 52.5073198})
	v.SetDefault("network.path", "")
	v.SetDefault("network.format", "")
	v.SetDefault("network.id_field", "edgeUID")
	v.SetDefault("counts.path", "")
	v.SetDefault("counts.format", "")
	v.SetDefault("counts.table", "edge_counts")
	v.SetDefault("counts.start", "2021-11-21")
	v.SetDefault("counts.end", "2024-11-21")
	v.SetDefault("features.landmarks", []map[string]any{
		{"name": "hauptbahnhof", "lon": 13.369545, "lat": 52.525589},
		{"name": "alexanderplatz", "lon": 13.413244, "lat": 52.521918},
	})
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.geographic", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hexpanel.db")
	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.chunk_size", 512)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Sections accepted by Validate.
const (
	SectionGrid   = "grid"
	SectionPanel  = "panel"
	SectionStore  = "store"
	SectionServer = "server"
)

// Validate checks the settings a command depends on. Unknown sections are
// an error.
func (c *Config) Validate(section string) error {
	switch section {
	case SectionGrid:
		return c.validateGrid()
	case SectionPanel:
		if err := c.validateGrid(); err != nil {
			return err
		}
		return c.validatePanel()
	case SectionStore:
		return c.validateStore()
	case SectionServer:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port %d out of range", c.Server.Port)
		}
		return c.validateStore()
	default:
		return eris.Errorf("config: unknown section %q", section)
	}
}

func (c *Config) validateGrid() error {
	if c.Network.Path == "" {
		return eris.New("config: network.path is required")
	}
	if !(c.Grid.Radius > 0) || math.IsInf(c.Grid.Radius, 0) {
		return eris.Errorf("config: grid.radius must be positive, got %v", c.Grid.Radius)
	}
	if c.Grid.Tolerance < 0 {
		return eris.Errorf("config: grid.tolerance must not be negative, got %v", c.Grid.Tolerance)
	}
	if len(c.Study.TreatedArea) == 0 && len(c.Study.TreatedPoint) != 2 {
		return eris.New("config: study.treated_area or study.treated_point (lon, lat) is required")
	}
	for i, p := range c.Study.TreatedArea {
		if len(p) != 2 {
			return eris.Errorf("config: study.treated_area[%d] must be (lon, lat)", i)
		}
	}
	if len(c.Exclusion.Polygon) == 0 && len(c.Exclusion.BBox) != 0 && len(c.Exclusion.BBox) != 4 {
		return eris.Errorf("config: exclusion.bbox needs 4 values, got %d", len(c.Exclusion.BBox))
	}
	for i, p := range c.Exclusion.Polygon {
		if len(p) != 2 {
			return eris.Errorf("config: exclusion.polygon[%d] must be (lon, lat)", i)
		}
	}
	for i, l := range c.Features.Landmarks {
		if l.Name == "" {
			return eris.Errorf("config: features.landmarks[%d] has no name", i)
		}
	}
	if c.Study.Projection == "" {
		return eris.New("config: study.projection is required")
	}
	return nil
}

func (c *Config) validatePanel() error {
	if c.Counts.Path == "" {
		return eris.New("config: counts.path is required")
	}
	if _, err := c.Study.Treatment(); err != nil {
		return err
	}
	if c.Study.PeriodDays < 0 {
		return eris.Errorf("config: study.period_days must not be negative, got %d", c.Study.PeriodDays)
	}
	if _, _, err := c.Counts.Window(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store.driver %q is not supported", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
