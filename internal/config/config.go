// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Duration — длительность с поддержкой суффикса дней ("7d") поверх
// стандартного синтаксиса time.ParseDuration ("15m", "720h").
type Duration time.Duration

// Duration возвращает значение как time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// SetValue реализует cleanenv.Setter для значений из переменных окружения.
func (d *Duration) SetValue(s string) error {
	v, err := parseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

// UnmarshalYAML разбирает значение из YAML-файла конфигурации.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	return d.SetValue(raw)
}

// parseDuration разбирает "15m"/"720h" через time.ParseDuration,
// а также "7d" (дни — их time.ParseDuration не знает).
func parseDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if strings.HasSuffix(raw, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(raw, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}

		return time.Duration(days * float64(24*time.Hour)), nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	return v, nil
}

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл .yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Auth     AuthConfig    `yaml:"auth"`
	Cookies  CookieConfig  `yaml:"cookies"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"5s"`
}

// HTTPConfig — сетевые настройки публичного HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50080"`
}

// MetricsConfig — отдельный HTTP для Prometheus и health-проб.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"50085"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (m MetricsConfig) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
//
// Секреты обязательны: неподписанный токен — это отказ безопасности,
// поэтому отсутствие секрета валит процесс на старте (MustLoad), а не
// деградирует молча. Access и refresh подписываются РАЗНЫМИ секретами:
// компрометация одного не позволяет подделать другой.
type AuthConfig struct {
	AccessSecret  string   `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
	RefreshSecret string   `yaml:"refresh_secret" env:"REFRESH_SECRET" env-required:"true"`
	AccessTTL     Duration `yaml:"access_expires_in" env:"ACCESS_EXPIRES_IN" env-default:"15m"`
	RefreshTTL    Duration `yaml:"refresh_expires_in" env:"REFRESH_EXPIRES_IN" env-default:"7d"`
	Issuer        string   `yaml:"issuer" env:"ISSUER" env-default:"session-service"`
}

// CookieConfig — атрибуты сессионных cookie.
// Secure по умолчанию включён; выключается только для локальной разработки.
type CookieConfig struct {
	Secure bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
	Path   string `yaml:"path" env:"COOKIE_PATH" env-default:"/"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — опциональный кэш отпечатков refresh-токенов.
// Пустой URL — кэш не используется.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		c, err := tryRead(path)
		if err != nil {
			return nil, err
		}

		if err := c.validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		c, err := tryRead(envPath)
		if err != nil {
			return nil, err
		}

		if err := c.validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — инварианты конфигурации, которые cleanenv не выражает тегами.
func (c *Config) validate() error {
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET must differ")
	}

	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	return nil
}
