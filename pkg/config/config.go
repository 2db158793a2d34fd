// Package config loads the gateway's YAML configuration via viper, the
// way the teacher's pkg/config loads its system map, generalized from a
// DMR master/peer/openbridge list to D-Star's gateway/repeaters/ircddb/
// aprs/reflector surface (spec §6).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level gateway configuration.
type Config struct {
	Gateway   GatewayConfig        `mapstructure:"gateway"`
	Repeaters []RepeaterConfig     `mapstructure:"repeaters"`
	IRCDDB    []IRCDDBConfig       `mapstructure:"ircddb"`
	APRS      APRSConfig           `mapstructure:"aprs"`
	Reflector ReflectorFamilyGroup `mapstructure:"reflectors"`
	Logging   LoggingConfig        `mapstructure:"logging"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
	Database  DatabaseConfig       `mapstructure:"database"`
}

// GatewayConfig identifies the local gateway station.
type GatewayConfig struct {
	Callsign  string  `mapstructure:"callsign"`
	Address   string  `mapstructure:"address"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Type      string  `mapstructure:"type"` // repeater, hotspot
	Language  string  `mapstructure:"language"`
}

// RepeaterConfig describes one locally attached repeater/module.
type RepeaterConfig struct {
	Callsign           string  `mapstructure:"callsign"`
	Band               string  `mapstructure:"band"` // single module letter A/B/C
	Address            string  `mapstructure:"address"`
	Port               int     `mapstructure:"port"`
	Type               string  `mapstructure:"type"` // hb, icom
	Reflector          string  `mapstructure:"reflector"`
	ReflectorAtStartup bool    `mapstructure:"reflector_at_startup"`
	ReflectorReconnect string  `mapstructure:"reflector_reconnect"` // never, fixed, 5..180 (minutes)
	FrequencyMHz       float64 `mapstructure:"frequency"`
	OffsetMHz          float64 `mapstructure:"offset"`
	RangeKm            float64 `mapstructure:"range"`
	Latitude           float64 `mapstructure:"latitude"`
	Longitude          float64 `mapstructure:"longitude"`
	AGLMeters          float64 `mapstructure:"agl"`
}

// IRCDDBConfig is one configured ircDDB server peer.
type IRCDDBConfig struct {
	Hostname string `mapstructure:"hostname"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// APRSConfig configures the APRS-IS uplink.
type APRSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Hostname string `mapstructure:"hostname"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

// ReflectorFamilyConfig configures one reflector-family handler (DExtra,
// DCS, D-Plus, or XLX — which is carried with protocol DCS on the radio
// side per spec §4.5).
type ReflectorFamilyConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	HostfileURL string `mapstructure:"hostfile_url"`
	MaxDongles  int    `mapstructure:"max_dongles"`
}

// ReflectorFamilyGroup holds the four reflector-family configs.
type ReflectorFamilyGroup struct {
	DExtra ReflectorFamilyConfig `mapstructure:"dextra"`
	DCS    ReflectorFamilyConfig `mapstructure:"dcs"`
	DPlus  ReflectorFamilyConfig `mapstructure:"dplus"`
	XLX    ReflectorFamilyConfig `mapstructure:"xlx"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig configures the link-session history store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from configFile (or the default search path)
// plus environment variables prefixed DSTARGW_, validates it, and returns
// the parsed Config.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/dstargw")
	}

	viper.SetEnvPrefix("DSTARGW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Missing config file is fine; defaults apply.
		} else if os.IsNotExist(err) {
			// Explicitly named but absent file is also fine.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("gateway.type", "repeater")

	viper.SetDefault("ircddb", []map[string]string{
		{"hostname": "ircv4.openquad.net"},
	})

	viper.SetDefault("aprs.enabled", true)
	viper.SetDefault("aprs.hostname", "rotate.aprs2.net")
	viper.SetDefault("aprs.port", 14580)

	viper.SetDefault("reflectors.dextra.enabled", true)
	viper.SetDefault("reflectors.dextra.max_dongles", 5)
	viper.SetDefault("reflectors.dcs.enabled", true)
	viper.SetDefault("reflectors.dcs.max_dongles", 5)
	viper.SetDefault("reflectors.dplus.enabled", true)
	viper.SetDefault("reflectors.dplus.max_dongles", 5)
	viper.SetDefault("reflectors.xlx.enabled", true)
	viper.SetDefault("reflectors.xlx.max_dongles", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("database.path", "data/dstargw.db")
}
