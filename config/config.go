package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del cliente.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Sync    SyncConfig    `yaml:"sync"`
	Betting BettingConfig `yaml:"betting"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig apunta a la Market/Social API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"` // mejor por env: PARIWAGER_API_TOKEN
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SyncConfig controla el refresco de odds en vivo.
type SyncConfig struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	CoalesceMillis      int `yaml:"coalesce_ms"` // refrescos no forzados dentro de esta ventana se reutilizan
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
	DeltaLifetimeMillis int `yaml:"delta_lifetime_ms"`
	SwingThreshold      int `yaml:"swing_threshold"` // puntos porcentuales
	ClosingSoonMinutes  int `yaml:"closing_soon_minutes"`
}

// BettingConfig contiene los parámetros de las apuestas.
type BettingConfig struct {
	Bettor         string  `yaml:"bettor"` // ID de usuario para saldo y journal
	LiquidityFloor float64 `yaml:"liquidity_floor"`
	CheckBalance   bool    `yaml:"check_balance"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig habilita la publicación de señales. Vacío = desactivado.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// APITimeout devuelve el timeout HTTP como time.Duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SyncInterval es el periodo del ticker de odds.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// CoalesceWindow es la ventana dentro de la cual un refresh no forzado reutiliza el último fetch.
func (c *Config) CoalesceWindow() time.Duration {
	return time.Duration(c.Sync.CoalesceMillis) * time.Millisecond
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sync.FetchTimeoutSeconds) * time.Second
}

func (c *Config) DeltaLifetime() time.Duration {
	return time.Duration(c.Sync.DeltaLifetimeMillis) * time.Millisecond
}

func (c *Config) ClosingSoonWindow() time.Duration {
	return time.Duration(c.Sync.ClosingSoonMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARIWAGER_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("PARIWAGER_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("PARIWAGER_BETTOR"); v != "" {
		cfg.Betting.Bettor = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080/api"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 15
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 5
	}
	if cfg.Sync.CoalesceMillis <= 0 {
		cfg.Sync.CoalesceMillis = 3000
	}
	if cfg.Sync.FetchTimeoutSeconds <= 0 {
		cfg.Sync.FetchTimeoutSeconds = 10
	}
	if cfg.Sync.DeltaLifetimeMillis <= 0 {
		cfg.Sync.DeltaLifetimeMillis = 2500
	}
	if cfg.Sync.SwingThreshold <= 0 {
		cfg.Sync.SwingThreshold = 5
	}
	if cfg.Sync.ClosingSoonMinutes <= 0 {
		cfg.Sync.ClosingSoonMinutes = 15
	}
	if cfg.Betting.LiquidityFloor <= 0 {
		cfg.Betting.LiquidityFloor = 100
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "pariwager.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
