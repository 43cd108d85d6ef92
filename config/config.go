package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/clients/evm"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/clients/icon"
)

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

type SolverConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

type Config struct {
	Database     DatabaseConfig           `mapstructure:"database"`
	API          APIConfig                `mapstructure:"api"`
	Solver       SolverConfig             `mapstructure:"solver"`
	EvmNetworks  []evm.EvmNetworkConfig   `mapstructure:"evm_networks" validate:"dive"`
	IconNetworks []icon.IconNetworkConfig `mapstructure:"icon_networks" validate:"dive"`
	EventBusSize int                      `mapstructure:"event_bus_size"`
}

var GlobalConfig *Config

// LoadEnv reads the optional .env file and makes all environment
// variables visible to viper.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("[Config] [LoadEnv] no .env file found")
	}
	viper.AutomaticEnv()
}

// Load reads the chains config file for the given environment and
// validates it. The file location defaults to data/<env>/chains.json
// and can be overridden with CONFIG_CHAINS.
func Load(environment string) error {
	configFile := viper.GetString("CONFIG_CHAINS")
	if configFile == "" {
		configFile = fmt.Sprintf("data/%s/chains.json", environment)
	}
	if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("chains config file %s not found: %w", configFile, err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading chains config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling chains config: %w", err)
	}

	// Per-network private keys come from the environment, keyed by the
	// network name: <NAME>_PRIVATE_KEY overrides the file value.
	for i := range cfg.EvmNetworks {
		if key := networkKey(cfg.EvmNetworks[i].Name); key != "" {
			cfg.EvmNetworks[i].PrivateKey = key
		}
	}
	for i := range cfg.IconNetworks {
		if key := networkKey(cfg.IconNetworks[i].Name); key != "" {
			cfg.IconNetworks[i].PrivateKey = key
		}
	}

	cfg.Database.URL = viper.GetString("DATABASE_URL")
	if cfg.API.Addr == "" {
		cfg.API.Addr = viper.GetString("API_ADDR")
	}
	if cfg.Solver.Endpoint == "" {
		cfg.Solver.Endpoint = viper.GetString("SOLVER_ENDPOINT")
	}
	if cfg.EventBusSize == 0 {
		cfg.EventBusSize = 64
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("invalid chains config: %w", err)
	}

	GlobalConfig = &cfg
	return nil
}

func networkKey(name string) string {
	if name == "" {
		return ""
	}
	envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_PRIVATE_KEY"
	return viper.GetString(envName)
}

// InitLogger configures the global zerolog logger from LOG_LEVEL and
// PRETTY_LOG.
func InitLogger() {
	level, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if viper.GetBool("PRETTY_LOG") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
