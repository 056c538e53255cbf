package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Score  ScoreConfig  `yaml:"score" mapstructure:"score"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures the filing ingestion batch.
type IngestConfig struct {
	XMLDir        string `yaml:"xml_dir" mapstructure:"xml_dir"`
	FailureDetail int    `yaml:"failure_detail" mapstructure:"failure_detail"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
}

// ScoreConfig holds the lead score component weights. A component whose
// inputs are missing drops out of both the numerator and the weight sum.
type ScoreConfig struct {
	RevenueGrowthWeight float64 `yaml:"revenue_growth_weight" mapstructure:"revenue_growth_weight"`
	ProgramRatioWeight  float64 `yaml:"program_ratio_weight" mapstructure:"program_ratio_weight"`
	SurplusWeight       float64 `yaml:"surplus_weight" mapstructure:"surplus_weight"`
	LiabilityWeight     float64 `yaml:"liability_weight" mapstructure:"liability_weight"`
	ExecCompWeight      float64 `yaml:"exec_comp_weight" mapstructure:"exec_comp_weight"`
}

// ExportConfig configures the Postgres mirror target.
type ExportConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("NPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "database/nonprofit_intelligence.db")
	v.SetDefault("ingest.xml_dir", "data/raw_xml")
	v.SetDefault("ingest.failure_detail", 10)
	v.SetDefault("ingest.progress_every", 50)
	v.SetDefault("score.revenue_growth_weight", 25)
	v.SetDefault("score.program_ratio_weight", 30)
	v.SetDefault("score.surplus_weight", 20)
	v.SetDefault("score.liability_weight", 15)
	v.SetDefault("score.exec_comp_weight", 10)
	v.SetDefault("export.batch_size", 2000)
	v.SetDefault("server.port", 8080)
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
