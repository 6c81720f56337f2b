package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"` // postgres only
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Model struct {
		Provider       string `yaml:"provider"` // ollama | openai
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		APIKey         string `yaml:"apiKey"` // openai provider only
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"model"`

	Analysis struct {
		Workers    int `yaml:"workers"`
		MaxRetries int `yaml:"maxRetries"`
	} `yaml:"analysis"`
}

// Load reads the yaml config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8977
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "ollama"
	}
	if c.Model.Endpoint == "" && c.Model.Provider == "ollama" {
		c.Model.Endpoint = "http://127.0.0.1:11434"
	}
	if c.Model.TimeoutSeconds == 0 {
		c.Model.TimeoutSeconds = 120
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = 2
	}
	if c.Analysis.MaxRetries == 0 {
		c.Analysis.MaxRetries = 2
	}
}

// ModelTimeout is the wall-clock budget for one model call.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// MySQLDSN builds the MySQL connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslMode,
	)
}
