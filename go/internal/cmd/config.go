package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Client struct {
		ServerURL  string `yaml:"server_url"`
		APIBaseURL string `yaml:"api_base_url"`
		StatusAddr string `yaml:"status_addr"`
		DataPath   string `yaml:"data_path"`
	} `yaml:"client"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// resolveConfig loads the optional YAML file and lets the environment
// override it.
func resolveConfig(path string) *Config {
	config := &Config{}
	if path != "" {
		if loaded, err := loadConfig(path); err == nil {
			config = loaded
		}
	}
	config.Client.ServerURL = getEnv("QUIZ_SERVER_URL", defaulted(config.Client.ServerURL, "ws://localhost:8080/ws"))
	config.Client.APIBaseURL = getEnv("QUIZ_API_URL", defaulted(config.Client.APIBaseURL, "http://localhost:8080/api"))
	config.Client.StatusAddr = getEnv("QUIZ_STATUS_ADDR", defaulted(config.Client.StatusAddr, "127.0.0.1:8971"))
	config.Client.DataPath = getEnv("QUIZ_DATA_PATH", defaulted(config.Client.DataPath, "musicquiz.db"))
	return config
}

func defaulted(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
