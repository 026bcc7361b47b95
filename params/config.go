package params

import (
	"os"

	"github.com/joho/godotenv"
)

// Node holds the runtime settings of a ledger node.
type Node struct {
	ListenAddr string // HTTP API bind address
	DataDir    string // pebble database directory
	LogFile    string // log tee target; empty logs to console only
}

type Config struct {
	Node Node
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "data/ledger.db",
			LogFile:    "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables.
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.ListenAddr = getEnv("LISTEN_ADDR", cfg.Node.ListenAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
