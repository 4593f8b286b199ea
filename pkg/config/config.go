package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menmos/menmos/pkg/types"
)

// DirectoryConfig is menmosd's on-disk configuration.
type DirectoryConfig struct {
	DataDir     string   `yaml:"data_dir"`
	ListenAddr  string   `yaml:"listen_addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	RootDomain  string   `yaml:"root_domain"`
	UseTLS      bool     `yaml:"use_tls"`
	AdminUsers  []string `yaml:"admin_users"`

	SigningKey string        `yaml:"signing_key"`
	TokenTTL   time.Duration `yaml:"token_ttl"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// LoadDirectoryConfig reads and parses a DirectoryConfig from path,
// applying defaults to anything left unset.
func LoadDirectoryConfig(path string) (*DirectoryConfig, error) {
	cfg := DirectoryConfig{
		DataDir:     "./menmosd-data",
		ListenAddr:  "0.0.0.0:8080",
		MetricsAddr: "127.0.0.1:9090",
		TokenTTL:    24 * time.Hour,
		LogLevel:    "info",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}

	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("config: %q: signing_key is required", path)
	}
	return &cfg, nil
}

// RedirectConfig is the YAML shape of types.RedirectInfo: IPs are
// strings on disk and parsed into net.IP for the wire type.
type RedirectConfig struct {
	Automatic  bool   `yaml:"automatic"`
	PublicIP   string `yaml:"public_ip"`
	LocalIP    string `yaml:"local_ip"`
	SubnetMask string `yaml:"subnet_mask"`
	StaticIP   string `yaml:"static_ip"`
}

// ToRedirectInfo converts the YAML-friendly form into the wire type,
// silently leaving unparsable/empty fields as a nil net.IP.
func (r RedirectConfig) ToRedirectInfo() types.RedirectInfo {
	return types.RedirectInfo{
		Automatic:  r.Automatic,
		PublicIP:   net.ParseIP(r.PublicIP),
		LocalIP:    net.ParseIP(r.LocalIP),
		SubnetMask: net.ParseIP(r.SubnetMask),
		StaticIP:   net.ParseIP(r.StaticIP),
	}
}

// StorageConfig is amphora's on-disk configuration.
type StorageConfig struct {
	NodeID         string `yaml:"node_id"`
	DataDir        string `yaml:"data_dir"`
	ListenAddr     string `yaml:"listen_addr"`
	MetricsAddr    string `yaml:"metrics_addr"`
	Port           uint16 `yaml:"port"`
	AvailableSpace uint64 `yaml:"available_space"`

	DirectoryAddr string `yaml:"directory_addr"`
	RootDomain    string `yaml:"root_domain"`
	UseTLS        bool   `yaml:"use_tls"`

	Redirect RedirectConfig `yaml:"redirect"`

	// SigningKey must match the directory's signing_key: amphora
	// verifies tokens the directory issued and self-issues tokens of
	// its own identity when pushing blobs to peers.
	SigningKey string        `yaml:"signing_key"`
	TokenTTL   time.Duration `yaml:"token_ttl"`

	TransferQueueSize int           `yaml:"transfer_queue_size"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// LoadStorageConfig reads and parses a StorageConfig from path,
// applying defaults to anything left unset.
func LoadStorageConfig(path string) (*StorageConfig, error) {
	cfg := StorageConfig{
		DataDir:           "./amphora-data",
		ListenAddr:        "0.0.0.0:8081",
		MetricsAddr:       "127.0.0.1:9091",
		Port:              8081,
		TransferQueueSize: 64,
		TokenTTL:          24 * time.Hour,
		LogLevel:          "info",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}

	if cfg.NodeID == "" {
		return nil, fmt.Errorf("config: %q: node_id is required", path)
	}
	if cfg.DirectoryAddr == "" {
		return nil, fmt.Errorf("config: %q: directory_addr is required", path)
	}
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("config: %q: signing_key is required", path)
	}
	return &cfg, nil
}
