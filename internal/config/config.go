// Package config содержит логику чтения конфигурации сервиса ресторатор.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса ресторатор.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	GeocoderAddress string `env:"GEOCODER_ADDRESS"`
	GeocoderAPIKey  string `env:"GEOCODER_API_KEY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Файл .env, если он есть, подгружается до разбора окружения.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGeocoderAddress := cfg.GeocoderAddress
	envGeocoderAPIKey := cfg.GeocoderAPIKey

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GeocoderAddress, "g", "https://geocode-maps.yandex.ru", "geocoder service address")
	flag.StringVar(&cfg.GeocoderAPIKey, "k", "", "geocoder API key")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGeocoderAddress != "" {
		cfg.GeocoderAddress = envGeocoderAddress
	}
	if envGeocoderAPIKey != "" {
		cfg.GeocoderAPIKey = envGeocoderAPIKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
