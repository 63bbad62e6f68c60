// internal/config/settings.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// Duration type for settings parsed with time.ParseDuration
	Duration SettingType = "duration"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Required indicates whether the setting is required
	Required bool
}

// FlagName returns the command line flag for the setting (PKI_ADDRESS -> pki-address)
func (s Setting) FlagName() string {
	return strings.ReplaceAll(strings.ToLower(s.Name), "_", "-")
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// AddFlags registers one flag per setting on fs
func (sl SettingList) AddFlags(fs *pflag.FlagSet) {
	for _, s := range sl {
		if fs.Lookup(s.FlagName()) != nil {
			continue
		}
		switch s.Type {
		case Bool:
			def, _ := s.Default.(bool)
			fs.Bool(s.FlagName(), def, s.Short)
		case Int:
			def, _ := s.Default.(int)
			fs.Int(s.FlagName(), def, s.Short)
		default:
			def, _ := s.Default.(string)
			fs.String(s.FlagName(), def, s.Short)
		}
	}
}

// BindFlags binds every registered setting flag to its viper key. Only flags
// that were set explicitly override environment and file values.
func (sl SettingList) BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, s := range sl {
		flag := fs.Lookup(s.FlagName())
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(s.Name, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}
	return nil
}

// Settings defines all application settings
var Settings = SettingList{
	// Listener settings
	{
		Name:    "INGRESS_ADDR",
		Short:   "Address of the ingress check listener",
		Type:    String,
		Default: ":50051",
	},
	{
		Name:    "EGRESS_ADDR",
		Short:   "Address of the egress check listener",
		Type:    String,
		Default: ":50052",
	},
	{
		Name:    "ADMIN_ADDR",
		Short:   "Address of the admin server (metrics and probes)",
		Type:    String,
		Default: ":9090",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for in-flight checks on shutdown",
		Type:    Duration,
		Default: "30s",
	},

	// TLS settings for the check listeners
	{
		Name:    "TLS_ENABLED",
		Short:   "Serve the check listeners over TLS",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to the listener TLS certificate",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to the listener TLS key",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_CA_PATH",
		Short:   "Path to a CA used to verify proxy client certificates",
		Type:    String,
		Default: "",
	},

	// Trust authority
	{
		Name:     "PKI_ADDRESS",
		Short:    "Base URL of the trust authority",
		Type:     String,
		Default:  "",
		Required: true,
	},
	{
		Name:    "PKI_CA_PATH",
		Short:   "Path of the CA certificate endpoint on the trust authority",
		Type:    String,
		Default: "/ca",
	},
	{
		Name:    "PKI_CSR_PATH",
		Short:   "Path of the CSR endpoint on the trust authority",
		Type:    String,
		Default: "/csr",
	},
	{
		Name:    "PKI_TLS_CA_PATH",
		Short:   "CA bundle used to verify the trust authority's TLS certificate",
		Type:    String,
		Default: "",
	},
	{
		Name:    "PKI_TOKEN",
		Short:   "Bearer token presented to the trust authority",
		Type:    String,
		Default: "",
	},
	{
		Name:    "PKI_RETRY_TIMEOUT",
		Short:   "How long bootstrap retries an unreachable trust authority",
		Type:    Duration,
		Default: "2m",
	},
	{
		Name:     "COMMON_NAME",
		Short:    "Common name requested in the certificate signing request",
		Type:     String,
		Default:  "",
		Required: true,
	},
	{
		Name:    "TRUST_STORE_PATH",
		Short:   "Directory where the CA, local certificate and key are persisted",
		Type:    String,
		Default: "./pki",
	},

	// Identity tokens
	{
		Name:    "TOKEN_LIFETIME",
		Short:   "Validity of minted identity tokens",
		Type:    Duration,
		Default: "60s",
	},
	{
		Name:    "TOKEN_CLOCK_SKEW",
		Short:   "Tolerated clock skew when checking token expiry",
		Type:    Duration,
		Default: "5s",
	},
	{
		Name:    "TOKEN_AUDIENCE",
		Short:   "Audience of minted and accepted identity tokens",
		Type:    String,
		Default: "WirePact",
	},

	// Credential repository
	{
		Name:    "REPOSITORY_MODE",
		Short:   "Credential repository backend (csv, kubernetes, redis)",
		Type:    String,
		Default: "csv",
	},
	{
		Name:    "CSV_PATH",
		Short:   "Path to the credential csv file (id,username,password)",
		Type:    String,
		Default: "",
	},
	{
		Name:    "KUBERNETES_SECRET",
		Short:   "Name of the Kubernetes secret holding credentials",
		Type:    String,
		Default: "",
	},
	{
		Name:    "KUBERNETES_NAMESPACE",
		Short:   "Namespace of the credential secret (detected when empty)",
		Type:    String,
		Default: "",
	},
	{
		Name:    "KUBECONFIG",
		Short:   "Kubeconfig used outside of a cluster",
		Type:    String,
		Default: "",
	},
	{
		Name:    "REDIS_ADDR",
		Short:   "Address of the redis credential store",
		Type:    String,
		Default: "localhost:6379",
	},
	{
		Name:    "REDIS_PASSWORD",
		Short:   "Password of the redis credential store",
		Type:    String,
		Default: "",
	},
	{
		Name:    "REDIS_DB",
		Short:   "Database index of the redis credential store",
		Type:    Int,
		Default: 0,
	},
	{
		Name:    "REDIS_KEY_PREFIX",
		Short:   "Key prefix of credential entries in redis",
		Type:    String,
		Default: "meshtranslator:",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
	},
	{
		Name:    "LOG_FORMAT",
		Short:   "Logging format (text, json)",
		Type:    String,
		Default: "text",
	},
}
