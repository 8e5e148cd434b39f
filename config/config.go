// config предоставляет структуру конфигурации auth-ядра и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Duration — длительность с поддержкой суффикса дней ("7d") в дополнение
// к стандартным формам time.ParseDuration ("15m", "720h").
// Форма в днях используется для TTL refresh-токенов.
type Duration time.Duration

// Std возвращает значение как time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SetValue реализует cleanenv.Setter для чтения из переменных окружения.
func (d *Duration) SetValue(s string) error {
	v, err := parseDuration(s)
	if err != nil {
		return err
	}

	*d = v
	return nil
}

// UnmarshalYAML реализует yaml.Unmarshaler для чтения из файла конфигурации.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	v, err := parseDuration(s)
	if err != nil {
		return err
	}

	*d = v
	return nil
}

// parseDuration разбирает "Nd" как N суток, иначе делегирует time.ParseDuration.
func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}

		return Duration(time.Duration(days) * 24 * time.Hour), nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	return Duration(v), nil
}

// Config — корневая конфигурация auth-ядра.
// Источники значений (по убыванию приоритета):
//  1. явный путь, переданный вызывающим приложением;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env   string      `yaml:"env" env:"ENV" env-default:"local"`
	Auth  AuthConfig  `yaml:"auth"`
	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
}

// AuthConfig — параметры выпуска и проверки токенов.
//
// Access и refresh подписываются независимыми секретами с независимыми TTL:
// перехваченный refresh-токен не несёт ни роли, ни имени и не может быть
// предъявлен как access.
type AuthConfig struct {
	AccessSecret    string   `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
	AccessTokenTTL  Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshSecret   string   `yaml:"refresh_secret" env:"REFRESH_SECRET" env-required:"true"`
	RefreshTokenTTL Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"7d"`
	BcryptCost      int      `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
	Issuer          string   `yaml:"issuer"   env:"ISSUER" env-default:"auth-service"`
	Audience        []string `yaml:"audience" env:"AUDIENCE" env-default:"notes-app"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — настройки кэша сессий (опционально; пустой URL — кэш выключен).
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
			return nil, fmt.Errorf("config file does not exist: %q: %w", p, err)
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
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
