package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where feature layers are read from and written to.
// For the shapefile driver Input and Output are file paths; for sqlite and
// postgres they are layer names inside the database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Input       string `yaml:"input" mapstructure:"input"`
	Output      string `yaml:"output" mapstructure:"output"`
	IDField     string `yaml:"id_field" mapstructure:"id_field"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	SRID        int    `yaml:"srid" mapstructure:"srid"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// RetryAttempts bounds tries of database commits hit by a transient error.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// AnalysisConfig locates the measure, group and threshold tables.
type AnalysisConfig struct {
	Tables       string `yaml:"tables" mapstructure:"tables"`
	StrictSchema bool   `yaml:"strict_schema" mapstructure:"strict_schema"`
}

// PipelineConfig configures batch scoring.
type PipelineConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// ExportConfig configures selection and report output.
type ExportConfig struct {
	OutDir    string `yaml:"out_dir" mapstructure:"out_dir"`
	AreaField string `yaml:"area_field" mapstructure:"area_field"`
	Area      string `yaml:"area" mapstructure:"area"`
	XLSX      bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// RenderConfig selects the map renderer. Mask and Backgrounds are shapefiles
// drawn above and below the area layers. Outline is a shapefile of area
// boundaries, filtered by export.area_field, that sets the map extent.
type RenderConfig struct {
	Enabled     bool     `yaml:"enabled" mapstructure:"enabled"`
	Format      string   `yaml:"format" mapstructure:"format"`
	Outline     string   `yaml:"outline" mapstructure:"outline"`
	Mask        string   `yaml:"mask" mapstructure:"mask"`
	Backgrounds []string `yaml:"backgrounds" mapstructure:"backgrounds"`
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
	v.SetEnvPrefix("ADAPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "shapefile")
	v.SetDefault("store.input", "")
	v.SetDefault("store.output", "")
	v.SetDefault("store.id_field", "OA11CD")
	v.SetDefault("store.encoding", "")
	v.SetDefault("store.srid", 27700)
	v.SetDefault("store.path", "adapt.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("analysis.tables", "")
	v.SetDefault("analysis.strict_schema", true)
	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.progress_every", 50)
	v.SetDefault("export.out_dir", "out")
	v.SetDefault("export.area_field", "LSOA11NM")
	v.SetDefault("export.area", "")
	v.SetDefault("export.xlsx", false)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.format", "geojson")
	v.SetDefault("render.outline", "")
	v.SetDefault("render.mask", "")
	v.SetDefault("render.backgrounds", []string{})
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

// Validate checks the settings a command needs. Mode is one of "score",
// "export", "run" or "validate".
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := func(input, output bool) {
		switch c.Store.Driver {
		case "shapefile", "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be shapefile, sqlite or postgres", c.Store.Driver))
		}
		if input && c.Store.Input == "" {
			errs = append(errs, "store.input is required")
		}
		if output && c.Store.Output == "" {
			errs = append(errs, "store.output is required")
		}
		if output && c.Store.Input != "" && c.Store.Input == c.Store.Output {
			errs = append(errs, "store.output must differ from store.input")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
		if c.Store.Driver == "sqlite" && c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
		if c.Store.RetryAttempts < 0 {
			errs = append(errs, "store.retry_attempts must be >= 0")
		}
		if c.Store.IDField == "" {
			errs = append(errs, "store.id_field is required")
		}
	}
	needExport := func() {
		if c.Export.OutDir == "" {
			errs = append(errs, "export.out_dir is required")
		}
		if c.Export.Area != "" && c.Export.AreaField == "" {
			errs = append(errs, "export.area_field is required when export.area is set")
		}
		if c.Render.Enabled {
			switch c.Render.Format {
			case "geojson", "none":
			default:
				errs = append(errs, fmt.Sprintf("render.format %q must be geojson or none", c.Render.Format))
			}
		}
	}

	switch mode {
	case "score":
		needStore(true, true)
	case "export":
		needStore(true, false)
		needExport()
	case "run":
		needStore(true, true)
		needExport()
	case "validate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	// 0 lets the scorer use GOMAXPROCS.
	if c.Pipeline.Concurrency < 0 || c.Pipeline.Concurrency > 256 {
		errs = append(errs, fmt.Sprintf("pipeline.concurrency must be between 0 and 256 (got %d)", c.Pipeline.Concurrency))
	}
	if c.Pipeline.ProgressEvery < 0 {
		errs = append(errs, "pipeline.progress_every must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
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
