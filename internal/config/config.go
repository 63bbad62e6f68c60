// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

// EnvPrefix is prepended to every setting when read from the environment
const EnvPrefix = "TRANSLATOR"

// Load loads the configuration from all sources and returns the merged result.
// Precedence: explicitly set flags, environment, config file, defaults.
// flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Set up environment variable handling
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if flags != nil {
		if err := Settings.BindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist, but other errors should be reported
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := checkRequired(v); err != nil {
		return nil, err
	}

	config := &Config{}
	var err error

	// Listeners
	config.Server.IngressAddress = v.GetString("INGRESS_ADDR")
	config.Server.EgressAddress = v.GetString("EGRESS_ADDR")
	if config.Server.ShutdownTimeout, err = parseDuration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}
	config.Admin.Address = v.GetString("ADMIN_ADDR")

	// TLS
	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.CAPath = v.GetString("TLS_CA_PATH")

	// Trust authority
	pkiAddress, err := url.Parse(v.GetString("PKI_ADDRESS"))
	if err != nil {
		return nil, fmt.Errorf("invalid PKI address: %w", err)
	}
	config.PKI.Address = pkiAddress
	config.PKI.CAPath = v.GetString("PKI_CA_PATH")
	config.PKI.CSRPath = v.GetString("PKI_CSR_PATH")
	config.PKI.TLSCAPath = v.GetString("PKI_TLS_CA_PATH")
	config.PKI.Token = v.GetString("PKI_TOKEN")
	if config.PKI.RetryTimeout, err = parseDuration(v, "PKI_RETRY_TIMEOUT"); err != nil {
		return nil, err
	}
	config.PKI.CommonName = v.GetString("COMMON_NAME")
	config.PKI.StorePath = v.GetString("TRUST_STORE_PATH")

	// Identity tokens
	if config.Token.Lifetime, err = parseDuration(v, "TOKEN_LIFETIME"); err != nil {
		return nil, err
	}
	if config.Token.ClockSkew, err = parseDuration(v, "TOKEN_CLOCK_SKEW"); err != nil {
		return nil, err
	}
	config.Token.Audience = v.GetString("TOKEN_AUDIENCE")

	// Credential repository
	config.Repository.Mode = strings.ToLower(v.GetString("REPOSITORY_MODE"))
	config.Repository.CSV.Path = v.GetString("CSV_PATH")
	config.Repository.Kubernetes.Secret = v.GetString("KUBERNETES_SECRET")
	config.Repository.Kubernetes.Namespace = v.GetString("KUBERNETES_NAMESPACE")
	config.Repository.Kubernetes.Kubeconfig = v.GetString("KUBECONFIG")
	config.Repository.Redis.Address = v.GetString("REDIS_ADDR")
	config.Repository.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Repository.Redis.DB = v.GetInt("REDIS_DB")
	config.Repository.Redis.KeyPrefix = v.GetString("REDIS_KEY_PREFIX")

	// Observability
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")
	config.Observability.LogFormat = v.GetString("LOG_FORMAT")

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToLower(key), err)
	}
	return d, nil
}

// checkRequired fails on the first required setting without a value
func checkRequired(v *viper.Viper) error {
	for _, s := range Settings {
		if s.Required && strings.TrimSpace(v.GetString(s.Name)) == "" {
			return fmt.Errorf("%s is required (flag --%s or env %s_%s)", s.Short, s.FlagName(), EnvPrefix, s.Name)
		}
	}
	return nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.IngressAddress == cfg.Server.EgressAddress {
		return fmt.Errorf("ingress and egress listeners must use different addresses")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}

		// Check if certificate and key files exist
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if err := validatePKIConfig(cfg); err != nil {
		return err
	}

	return validateRepositoryConfig(cfg)
}

var pkiSchemes = []string{"http", "https"}

// validatePKIConfig validates trust authority and token configuration
func validatePKIConfig(cfg *Config) error {
	if !slices.Contains(pkiSchemes, cfg.PKI.Address.Scheme) {
		return fmt.Errorf("PKI address must be an http(s) URL, got %q", cfg.PKI.Address.Redacted())
	}
	if cfg.PKI.StorePath == "" {
		return fmt.Errorf("trust store path must not be empty")
	}
	if cfg.PKI.TLSCAPath != "" {
		if _, err := os.Stat(cfg.PKI.TLSCAPath); os.IsNotExist(err) {
			return fmt.Errorf("PKI TLS CA file not found: %s", cfg.PKI.TLSCAPath)
		}
	}
	if cfg.Token.Lifetime <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}
	if cfg.Token.ClockSkew < 0 {
		return fmt.Errorf("token clock skew must not be negative")
	}
	if cfg.Token.Audience == "" {
		return fmt.Errorf("token audience must not be empty")
	}
	return nil
}

// validateRepositoryConfig validates the selected credential repository
func validateRepositoryConfig(cfg *Config) error {
	switch cfg.Repository.Mode {
	case RepositoryCSV:
		if cfg.Repository.CSV.Path == "" {
			return fmt.Errorf("CSV path is required when using the csv repository")
		}
	case RepositoryKubernetes:
		if cfg.Repository.Kubernetes.Secret == "" {
			return fmt.Errorf("secret name is required when using the kubernetes repository")
		}
	case RepositoryRedis:
		if cfg.Repository.Redis.Address == "" {
			return fmt.Errorf("redis address is required when using the redis repository")
		}
	default:
		return fmt.Errorf("unknown repository mode %q", cfg.Repository.Mode)
	}
	return nil
}
