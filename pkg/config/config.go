// Package config loads the process configuration from the environment and
// the network definitions from networks.yaml.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"443"`

	InsecureHTTP bool     `envconfig:"INSECURE_HTTP"`
	TLSCertFile  string   `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile   string   `envconfig:"TLS_KEY_FILE"`
	TLSHosts     []string `envconfig:"TLS_HOSTS"`

	APIKeys        []string `envconfig:"API_KEYS"`
	AllowAnonymous bool     `envconfig:"API_ALLOW_ANONYMOUS"`

	Network      string `envconfig:"NETWORK" default:"mock"`
	NetworksFile string `envconfig:"NETWORKS_FILE" default:"networks.yaml"`
	RPCURL       string `envconfig:"RPC_URL"`
	RelayerURL   string `envconfig:"RELAYER_URL"`

	Mnemonic     string   `envconfig:"MNEMONIC"`
	AccountCount int      `envconfig:"ACCOUNT_COUNT" default:"10"`
	PrivateKeys  []string `envconfig:"PRIVATE_KEYS"`
	AccountNames []string `envconfig:"ACCOUNT_NAMES" default:"deployer,alice,bob"`
	MasterKey    string   `envconfig:"MASTER_KEY"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	MongoURL       string `envconfig:"MONGO_URL"`
	DeploymentsDir string `envconfig:"DEPLOYMENTS_DIR" default:"deployments"`
	ArtifactsDir   string `envconfig:"ARTIFACTS_DIR" default:"artifacts"`

	ReceiptTimeout      time.Duration `envconfig:"RECEIPT_TIMEOUT" default:"2m"`
	DecryptDurationDays int           `envconfig:"DECRYPT_DURATION_DAYS" default:"10"`
}

// LoadEnv loads the first existing dotenv files in precedence order. Values
// already present in the environment win.
func LoadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

// EnvFiles lists the dotenv cascade for env, most specific first.
func EnvFiles(env string) []string {
	return []string{".env." + env + ".local", ".env." + env, ".env.local", ".env"}
}

// Load runs the dotenv cascade then decodes the environment into a Config.
func Load() (*Config, error) {
	if _, ok := os.LookupEnv("ENV"); !ok {
		os.Setenv("ENV", "development")
	}
	LoadEnv(EnvFiles(os.Getenv("ENV"))...)

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	} else if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	c.Network = strings.TrimSpace(c.Network)

	if c.Network == "" {
		return fmt.Errorf("NETWORK not configured")
	} else if c.AccountCount < 0 {
		return fmt.Errorf("ACCOUNT_COUNT must not be negative, got %d", c.AccountCount)
	} else if c.DecryptDurationDays <= 0 {
		return fmt.Errorf("DECRYPT_DURATION_DAYS must be positive, got %d", c.DecryptDurationDays)
	} else if c.ReceiptTimeout <= 0 {
		return fmt.Errorf("RECEIPT_TIMEOUT must be positive, got %s", c.ReceiptTimeout)
	}
	return nil
}
