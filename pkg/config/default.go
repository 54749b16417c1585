// Global database config.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Name of the database.
const DBName = "hashdb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// The maximum number of pages that can be in the buffer pool at once.
const MaxPagesInBuffer = 64

// Default port for the REPL server.
const DefaultPort = 8335

// Config holds the runtime settings for an executable.
type Config struct {
	DataDir string // folder the index files live in
	Port    int    // REPL server port
}

// Load reads settings from the environment, consulting a .env file if one
// is present. Unset or malformed values fall back to the defaults.
func Load() Config {
	godotenv.Load(".env")
	cfg := Config{
		DataDir: "data/",
		Port:    DefaultPort,
	}
	if dir := os.Getenv("HASHDB_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if port := os.Getenv("HASHDB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	return cfg
}

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
