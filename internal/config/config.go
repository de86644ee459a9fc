package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mcs.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Storage     StorageConfig     `toml:"storage" validate:"-"`
	Credentials CredentialsConfig `toml:"credentials"`
	Records     RecordsConfig     `toml:"records"`
	Migration   MigrationConfig   `toml:"migration"`
	LocalRoots  []LocalRootConfig `toml:"local_roots" validate:"dive"`
	Filesystem  FilesystemConfig  `toml:"filesystem"`
	Server      ServerConfig      `toml:"server"`
}

// StorageConfig selects and configures the cloud provider.
// This uses a tagged union pattern - the Provider field determines which other fields are relevant.
type StorageConfig struct {
	Provider string `toml:"provider" validate:"required,oneof=s3 minio gcs aliyun filesystem memory"`
	Enabled  bool   `toml:"enabled"`

	PrivateBucket string `toml:"private_bucket,omitempty"`
	PublicBucket  string `toml:"public_bucket,omitempty"`
	Folder        string `toml:"folder,omitempty"`
	PublicBaseURL string `toml:"public_base_url,omitempty" validate:"omitempty,url"`

	// S3, MinIO and Aliyun fields
	AccessKeyID  string `toml:"access_key_id,omitempty"`
	Region       string `toml:"region,omitempty" validate:"required_if=Provider s3"`
	Endpoint     string `toml:"endpoint,omitempty"`
	UsePathStyle bool   `toml:"use_path_style,omitempty"`
	UseSSL       bool   `toml:"use_ssl,omitempty"`

	// GCS fields
	GCSCredentialsFile string `toml:"gcs_credentials_file,omitempty" validate:"required_if=Provider gcs"`

	// Filesystem fields
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Provider filesystem"`

	SignedURLExpiry  Duration `toml:"signed_url_expiry,omitempty"`
	DeleteFromCloud  bool     `toml:"delete_from_cloud,omitempty"`
	CloudURLPatterns []string `toml:"cloud_url_patterns,omitempty"`
}

// CredentialsConfig says where the provider secret key comes from.
type CredentialsConfig struct {
	Type      string `toml:"type" validate:"omitempty,oneof=inline env age"` // "inline", "env" or "age"
	SecretKey string `toml:"secret_key,omitempty"`                           // type=inline
	EnvVar    string `toml:"env_var,omitempty"`                              // type=env, defaults to MCS_SECRET_KEY
	AgeFile   string `toml:"age_file,omitempty"`                             // type=age
}

// RecordsConfig represents configuration for the file record store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RecordsConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite postgres memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // type=sqlite
	DSN     string `toml:"dsn,omitempty" validate:"required_if=Type postgres"`    // type=postgres
	Table   string `toml:"table,omitempty"`                                       // type=postgres, defaults to tabFile
}

// MigrationConfig tunes the migration engine.
type MigrationConfig struct {
	Workers                int      `toml:"workers" validate:"gte=0,lte=256"`
	PageSize               int      `toml:"page_size" validate:"gte=0"`
	MaxRetries             int      `toml:"max_retries" validate:"gte=0,lte=20"`
	RetryBaseDelay         Duration `toml:"retry_base_delay"`
	PutTimeout             Duration `toml:"put_timeout"`
	HealthTimeout          Duration `toml:"health_timeout"`
	RemoveLocalAfterUpload bool     `toml:"remove_local_after_upload"`
	AttachmentsFolder      string   `toml:"attachments_folder"`
	PrivateURLPath         string   `toml:"private_url_path" validate:"omitempty,startswith=/"`
	IgnoreDoctypes         []string `toml:"ignore_doctypes"` // skipped by single-record uploads
}

// PreparedReportDoctype attachments are generated output and never uploaded
// one at a time.
const PreparedReportDoctype = "Prepared Report"

// DefaultIgnoreDoctypes is used when ignore_doctypes is absent.
var DefaultIgnoreDoctypes = []string{"Data Import"}

// IgnoredDoctypes returns the attachment types a single-record upload leaves
// on local disk. Prepared reports are always included.
func (m MigrationConfig) IgnoredDoctypes() []string {
	types := m.IgnoreDoctypes
	if types == nil {
		types = DefaultIgnoreDoctypes
	}
	return append([]string{PreparedReportDoctype}, types...)
}

// LocalRootConfig maps a URL prefix to a directory holding local files.
type LocalRootConfig struct {
	URLPrefix string `toml:"url_prefix" validate:"required,startswith=/,endswith=/"`
	Dir       string `toml:"dir" validate:"required"`
	Private   bool   `toml:"private"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// ServerConfig configures the RPC server.
type ServerConfig struct {
	Listen    string `toml:"listen"`
	JWTSecret string `toml:"jwt_secret,omitempty"`
}

// Duration is a time.Duration stored as a string ("30s", "5m") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Or returns d, or def when d is unset.
func (d Duration) Or(def time.Duration) time.Duration {
	if d.Duration <= 0 {
		return def
	}
	return d.Duration
}

// Default engine settings, used when the config leaves them unset.
const (
	DefaultWorkers           = 4
	DefaultPageSize          = 200
	DefaultMaxRetries        = 2
	DefaultRetryBaseDelay    = 200 * time.Millisecond
	DefaultPutTimeout        = 5 * time.Minute
	DefaultHealthTimeout     = 10 * time.Second
	DefaultSignedURLExpiry   = 5 * time.Minute
	DefaultAttachmentsFolder = "Home/Attachments"
	DefaultPrivateURLPath    = "/api/v1/files/generate"
	DefaultListen            = "127.0.0.1:8420"
)

// NewConfig creates a new Config rooted at baseDir with a filesystem provider,
// a sqlite record store and the default local roots of baseDir/site.
func NewConfig(baseDir string) *Config {
	siteDir := filepath.Join(baseDir, "site")
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Storage: StorageConfig{
			Provider:        "filesystem",
			FSRoot:          filepath.Join(baseDir, "cloud"),
			SignedURLExpiry: Duration{DefaultSignedURLExpiry},
		},
		Credentials: CredentialsConfig{
			Type:   "env",
			EnvVar: "MCS_SECRET_KEY",
		},
		Records: RecordsConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Migration: MigrationConfig{
			Workers:                DefaultWorkers,
			PageSize:               DefaultPageSize,
			MaxRetries:             DefaultMaxRetries,
			RetryBaseDelay:         Duration{DefaultRetryBaseDelay},
			PutTimeout:             Duration{DefaultPutTimeout},
			HealthTimeout:          Duration{DefaultHealthTimeout},
			RemoveLocalAfterUpload: true,
			AttachmentsFolder:      DefaultAttachmentsFolder,
			PrivateURLPath:         DefaultPrivateURLPath,
			IgnoreDoctypes:         append([]string(nil), DefaultIgnoreDoctypes...),
		},
		LocalRoots: []LocalRootConfig{
			{URLPrefix: "/files/", Dir: filepath.Join(siteDir, "public", "files")},
			{URLPrefix: "/private/files/", Dir: filepath.Join(siteDir, "private", "files"), Private: true},
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// WriteToFile writes cfg to path, replacing any existing file.
// The file is created 0600 since it may hold a provider secret.
func WriteToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
