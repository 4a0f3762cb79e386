package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Graph store configuration
	Driver    string // graph driver: "neo4j" or "sqlite"
	DSN       string // bolt://... for neo4j, file path for sqlite
	Neo4jUser string
	Neo4jPass string

	// Fact store configuration
	FactDir string // directory holding per-user clause files

	// Lexicon configuration
	WordNetDir string // path to a WordNet dict directory; empty disables semantic stage

	// Agent identity
	AgentName string // name of the singleton Agent node

	// Sensor configuration
	SensorEndpoint string        // HTTP endpoint serving sensor readings; empty disables polling
	SensorInterval time.Duration // polling interval

	// Geolocation configuration
	GeoEnabled bool // best-effort IP geolocation for the perceptual stage

	// Background write pool
	WorkerCount int // concurrent background writers
	QueueSize   int // pending write capacity before drops

	// Server configuration
	Mode    string
	Addr    string
	Port    int
	Data    string
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.Neo4jUser = getEnvOrDefault("MNEMORA_NEO4J_USER", "neo4j")
	p.Neo4jPass = getEnvOrDefault("MNEMORA_NEO4J_PASSWORD", "")
	p.AgentName = getEnvOrDefault("MNEMORA_AGENT_NAME", "Freya")
	p.SensorEndpoint = getEnvOrDefault("MNEMORA_SENSOR_ENDPOINT", "")
	p.WordNetDir = getEnvOrDefault("MNEMORA_WORDNET_DIR", p.WordNetDir)
	p.GeoEnabled = getEnvOrDefault("MNEMORA_GEO_ENABLED", "true") == "true"

	if secs := getEnvOrDefaultInt("MNEMORA_SENSOR_INTERVAL_SECONDS", 30); secs > 0 {
		p.SensorInterval = time.Duration(secs) * time.Second
	}
	p.WorkerCount = getEnvOrDefaultInt("MNEMORA_WORKER_COUNT", 4)
	p.QueueSize = getEnvOrDefaultInt("MNEMORA_QUEUE_SIZE", 256)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and verifies startup requirements.
// An uncreatable fact directory is the only fatal per-install condition;
// everything downstream degrades per-request instead of failing.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.FactDir == "" {
		p.FactDir = filepath.Join(p.Data, "facts")
	}
	if err := os.MkdirAll(p.FactDir, 0o750); err != nil {
		return errors.Wrapf(err, "unable to create fact directory %s", p.FactDir)
	}

	if p.Driver != "neo4j" && p.Driver != "sqlite" {
		return errors.Errorf("unknown graph driver %q", p.Driver)
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "mnemora_"+p.Mode+".db")
	}
	if p.Driver == "neo4j" && p.DSN == "" {
		p.DSN = "bolt://localhost:7687"
	}

	if p.SensorInterval <= 0 {
		p.SensorInterval = 30 * time.Second
	}
	if p.WorkerCount <= 0 {
		p.WorkerCount = 4
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 256
	}
	if p.AgentName == "" {
		p.AgentName = "Freya"
	}

	return nil
}

// FactFile returns the clause file path for a user email, derived
// deterministically so concurrent callers agree on the location.
func (p *Profile) FactFile(email string) string {
	name := strings.ReplaceAll(email, "@", "_at_")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return filepath.Join(p.FactDir, name+".pl")
}
