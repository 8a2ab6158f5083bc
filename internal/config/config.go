package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// BUNDLEPUB_TRACKER_BASE_URL or BUNDLEPUB_PASSWORD.
const EnvPrefix = "BUNDLEPUB"

// FieldKeys names the custom fields of a submission issue.
type FieldKeys struct {
	SupportURL       string `mapstructure:"support_url" json:"support_url" validate:"required"`
	DocumentationURL string `mapstructure:"documentation_url" json:"documentation_url" validate:"required"`
	PrivacyURL       string `mapstructure:"privacy_url" json:"privacy_url" validate:"required"`
	TermsURL         string `mapstructure:"terms_url" json:"terms_url" validate:"required"`
	Vendor           string `mapstructure:"vendor" json:"vendor" validate:"required"`
}

// All returns the field keys in request order.
func (f FieldKeys) All() []string {
	return []string{f.SupportURL, f.DocumentationURL, f.PrivacyURL, f.TermsURL, f.Vendor}
}

// TrackerConfig configures the issue tracker connection.
type TrackerConfig struct {
	BaseURL       string        `mapstructure:"base_url" json:"base_url" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
	CommentPrefix string        `mapstructure:"comment_prefix" json:"comment_prefix"`
	Fields        FieldKeys     `mapstructure:"fields" json:"fields"`
}

// BundleConfig describes the expected bundle archive.
type BundleConfig struct {
	Suffix        string `mapstructure:"suffix" json:"suffix" validate:"required,startswith=."`
	MetadataFile  string `mapstructure:"metadata_file" json:"metadata_file" validate:"required"`
	MaxEntryBytes int64  `mapstructure:"max_entry_bytes" json:"max_entry_bytes" validate:"gt=0"`
}

// PathsConfig holds the local directories a run reads and writes.
type PathsConfig struct {
	DownloadDir string `mapstructure:"download_dir" json:"download_dir" validate:"required"`
	WorkRoot    string `mapstructure:"work_root" json:"work_root" validate:"required"`
	PublishRoot string `mapstructure:"publish_root" json:"publish_root" validate:"required"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" validate:"oneof=trace debug info warn error"`
}

// Config is the resolved configuration for a run.
type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker" json:"tracker"`
	Bundle  BundleConfig  `mapstructure:"bundle" json:"bundle"`
	Paths   PathsConfig   `mapstructure:"paths" json:"paths"`
	Log     LogConfig     `mapstructure:"log" json:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" json:"file,omitempty"`
}

// Credentials authenticate the service account against the tracker.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Invocation is the per-run input: which issue, as whom.
type Invocation struct {
	IssueID     string `validate:"required,issuekey"`
	Credentials Credentials
}

var defaults = map[string]any{
	"tracker.base_url":                 "https://issues.citrite.net",
	"tracker.timeout":                  "0s",
	"tracker.comment_prefix":           "Jenkins script failed: ",
	"tracker.fields.support_url":       "customfield_12635",
	"tracker.fields.documentation_url": "customfield_31030",
	"tracker.fields.privacy_url":       "customfield_31032",
	"tracker.fields.terms_url":         "customfield_31031",
	"tracker.fields.vendor":            "customfield_31230",
	"bundle.suffix":                    ".mapp",
	"bundle.metadata_file":             "metadata.json",
	"bundle.max_entry_bytes":           int64(100 * 1024 * 1024),
	"paths.download_dir":               ".",
	"paths.work_root":                  ".",
	"paths.publish_root":               "http",
	"log.level":                        "info",
}

// Load resolves configuration from defaults, the optional config file at path
// (or $BUNDLEPUB_CONFIG when path is empty) and BUNDLEPUB_* environment
// variables, in increasing order of precedence. Without a config file only
// defaults and the environment apply; a named file that cannot be read is an
// error.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.File = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", describe(err))
	}
	return nil
}

// Validate checks that an issue key and both credentials were supplied.
func (in Invocation) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid invocation: %w", describe(err))
	}
	return nil
}

// CredentialsFromEnv fills blank credential fields from BUNDLEPUB_USER and
// BUNDLEPUB_PASSWORD.
func CredentialsFromEnv(c Credentials) Credentials {
	if c.Username == "" {
		c.Username = os.Getenv(EnvPrefix + "_USER")
	}
	if c.Password == "" {
		c.Password = os.Getenv(EnvPrefix + "_PASSWORD")
	}
	return c
}

// issueKeyPattern accepts project keys (MICROSUB-123) and numeric issue ids.
var issueKeyPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*-[1-9][0-9]*|[1-9][0-9]*)$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("issuekey", func(fl validator.FieldLevel) bool {
		return issueKeyPattern.MatchString(fl.Field().String())
	})
	return v
}

// describe flattens validator errors into one readable line.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		field = strings.TrimPrefix(field, "Invocation.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "issuekey":
			msgs = append(msgs, fmt.Sprintf("%s %q is not an issue key", field, fe.Value()))
		default:
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s fails %s", field, fe.Tag()))
			}
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
