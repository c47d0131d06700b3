package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

const DefaultPath = "config.json"

type Config struct {
	Stomp struct {
		HostHeader       string `json:"host_header"`
		AcceptVersion    string `json:"accept_version"`
		ReceiptBase      int    `json:"receipt_base"`
		MessageCacheSize int    `json:"message_cache_size"`
		MessageCacheTTL  string `json:"message_cache_ttl"`
	} `json:"stomp"`
	Console struct {
		HistoryFile  string `json:"history_file"`
		HistoryLimit int    `json:"history_limit"`
	} `json:"console"`
	Archive struct {
		Enabled          bool   `json:"enabled"`
		Host             string `json:"host"`
		Port             uint64 `json:"port"`
		Username         string `json:"username"`
		Password         string `json:"password"`
		Database         string `json:"database"`
		UseTLS           bool   `json:"use_tls"`
		ConnectTimeout   string `json:"connect_timeout"`
		OperationTimeout string `json:"operation_timeout"`
		MinPoolSize      uint64 `json:"min_pool_size"`
		MaxPoolSize      uint64 `json:"max_pool_size"`
	} `json:"archive"`
	DebugMode bool   `json:"debug_mode"`
	AppName   string `json:"app_name"`
	LogDir    string `json:"log_dir"`
}

var (
	mu          sync.Mutex
	config      = Default()
	initialized = false
)

// Default returns the configuration written out when no config file exists.
func Default() Config {
	var c Config
	c.Stomp.HostHeader = "stomp.cs.bgu.ac.il"
	c.Stomp.AcceptVersion = "1.2"
	c.Stomp.ReceiptBase = 1000
	c.Stomp.MessageCacheSize = 1024
	c.Stomp.MessageCacheTTL = "10m"
	c.Console.HistoryFile = ".stomp_client_history"
	c.Console.HistoryLimit = 500
	c.Archive.Host = "localhost"
	c.Archive.Port = 27017
	c.Archive.Database = "stomp_client"
	c.Archive.ConnectTimeout = "10s"
	c.Archive.OperationTimeout = "5s"
	c.Archive.MinPoolSize = 1
	c.Archive.MaxPoolSize = 4
	c.AppName = "stomp-client"
	c.LogDir = "logs"
	return c
}

// ReadConfig loads path, creating it with defaults when it does not exist,
// then applies overrides from the environment and an optional .env file.
func ReadConfig(path string) (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	loaded := Default()
	bytes, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data, _ := json.MarshalIndent(loaded, "", "\t")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return loaded, fmt.Errorf("the configuration file does not exist and could not be created: %w", err)
		}
	case err != nil:
		return loaded, fmt.Errorf("unable to read configuration file: %w", err)
	default:
		if err := json.Unmarshal(bytes, &loaded); err != nil {
			return loaded, errors.New("the configuration file does not contain valid JSON")
		}
	}

	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()
	applyEnv(&loaded)

	config = loaded
	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	mu.Lock()
	ready := initialized
	current := config
	mu.Unlock()
	if ready {
		return current, nil
	}
	return ReadConfig(DefaultPath)
}

func applyEnv(c *Config) {
	if v, ok := os.LookupEnv("STOMP_HOST_HEADER"); ok && v != "" {
		c.Stomp.HostHeader = v
	}
	if v, ok := lookupBool("STOMP_DEBUG"); ok {
		c.DebugMode = v
	}
	if v, ok := os.LookupEnv("STOMP_LOG_DIR"); ok && v != "" {
		c.LogDir = v
	}
	if v, ok := lookupBool("STOMP_ARCHIVE_ENABLED"); ok {
		c.Archive.Enabled = v
	}
	if v, ok := os.LookupEnv("STOMP_ARCHIVE_HOST"); ok && v != "" {
		c.Archive.Host = v
	}
	if v, ok := os.LookupEnv("STOMP_ARCHIVE_USERNAME"); ok {
		c.Archive.Username = v
	}
	if v, ok := os.LookupEnv("STOMP_ARCHIVE_PASSWORD"); ok {
		c.Archive.Password = v
	}
}

func lookupBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
