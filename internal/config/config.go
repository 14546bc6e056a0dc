package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
		// База для редиректов после оплаты
		FrontendURL string `mapstructure:"frontendUrl"`
	} `mapstructure:"app"`
	Server struct {
		// Таймауты HTTP сервера в секундах (0 — значение по умолчанию)
		ReadTimeout  int `mapstructure:"readTimeout"`
		WriteTimeout int `mapstructure:"writeTimeout"`
	} `mapstructure:"server"`
	Database struct {
		DSN string `mapstructure:"dsn"`
		// InMemory переключает хранилище на реализацию в памяти
		// (локальная разработка и тесты)
		InMemory bool `mapstructure:"inMemory"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Razorpay struct {
		KeyID         string `mapstructure:"keyId"`
		KeySecret     string `mapstructure:"keySecret"`
		WebhookSecret string `mapstructure:"webhookSecret"`
		// Соответствие внутренних планов планам провайдера
		PlanIDs map[string]string `mapstructure:"planIds"`
	} `mapstructure:"razorpay"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env может отсутствовать: конфигурация тогда берется из файла
		// и окружения
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
