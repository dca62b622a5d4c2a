package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/howdynet/howdy/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key.pem"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultHandshakeInterval = 30 * time.Second
	DefaultDiscoveryInterval = 300 * time.Second
	DefaultBootstrap         = true
	DefaultRelay             = false
	DefaultDHT               = true
	DefaultMDNS              = true
)

// Config contains all the configuration properties of a howdy node.
type Config struct {
	// DataDir is the top-level directory containing howdy configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, copies the log output to a file.
	LogFile string `mapstructure:"log-file"`

	// Port is the TCP port the node listens on. Zero means an ephemeral port
	// chosen by the OS.
	Port uint16 `mapstructure:"port"`

	// ConnectAddr is the multiaddress of one peer to dial at startup. It must
	// contain a /p2p/ component identifying the peer.
	ConnectAddr string `mapstructure:"connect"`

	// Bootstrap determines whether to dial the well-known public bootstrap
	// nodes and join the global discovery network.
	Bootstrap bool `mapstructure:"bootstrap"`

	// Relay determines whether this node acts as a relay for NAT-restricted
	// peers. Relay client functionality is always on.
	Relay bool `mapstructure:"relay"`

	// Moniker is the optional display name embedded in handshake messages.
	Moniker string `mapstructure:"name"`

	// DHT enables the Kademlia routing table in server mode. When disabled
	// the node still maintains a client-mode routing table but does not serve
	// queries.
	DHT bool `mapstructure:"dht"`

	// MDNS enables local-network peer discovery.
	MDNS bool `mapstructure:"mdns"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HandshakeInterval is the period of the handshake broadcast timer.
	HandshakeInterval time.Duration `mapstructure:"handshake-interval"`

	// DiscoveryInterval is the period of the routing-table re-bootstrap
	// timer.
	DiscoveryInterval time.Duration `mapstructure:"discovery-interval"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		ServiceAddr:       DefaultServiceAddr,
		Bootstrap:         DefaultBootstrap,
		Relay:             DefaultRelay,
		DHT:               DefaultDHT,
		MDNS:              DefaultMDNS,
		HandshakeInterval: DefaultHandshakeInterval,
		DiscoveryInterval: DefaultDiscoveryInterval,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Discovery and the HTTP service are off so that
// tests stay on the loopback interface.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.Bootstrap = false
	config.DHT = false
	config.MDNS = false
	config.NoService = true
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level howdy directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "howdy".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range logrus.AllLevels {
				pathMap[l] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(logrus.JSONFormatter)))
		}
	}
	return c.logger.WithField("prefix", "howdy")
}

// DefaultDataDir return the default directory name for top-level howdy config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Howdy")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Howdy")
		} else {
			return filepath.Join(home, ".howdy")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
