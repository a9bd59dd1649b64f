// Package satproxy ties the module's components together behind a single
// loadable Config, grounded on dtn7-go's tomlConfig pattern
// (cmd/dtnd/configuration.go): one struct per concern, decoded from TOML
// with BurntSushi/toml, defaults filled in for anything the file omits.
package satproxy

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level TOML document for satproxyd.
type Config struct {
	Listen      listenConf
	Timing      timingConf
	Accelerator acceleratorConf
	Logging     logConf
}

// listenConf describes the UDP socket the Demultiplexer binds.
type listenConf struct {
	Address string
}

// timingConf carries the Packet Tracker's retransmission tuning knobs.
type timingConf struct {
	// AdaptiveRTO enables the EWMA-based RTO estimator; when false the
	// fixed protocol.DefaultRTO is used for every connection.
	AdaptiveRTO bool `toml:"adaptive-rto"`
	// MinRTOMillis and MaxRTOMillis are decoded from the file but not
	// used: the adaptive estimator always clamps to the compiled-in
	// protocol.MinRTO/MaxRTO, whatever these fields hold.
	MinRTOMillis int `toml:"min-rto-ms"`
	MaxRTOMillis int `toml:"max-rto-ms"`
	// RetransmitBurstsPerSecond bounds ScanForRetransmit's token bucket.
	// Zero means "unlimited" (ackhandler.NewPacketTracker(0)'s behavior).
	RetransmitBurstsPerSecond float64 `toml:"retransmit-bursts-per-second"`
}

// acceleratorConf describes the optional offload accelerator collaborator.
type acceleratorConf struct {
	Enabled          bool
	DialTarget       string `toml:"dial-target"`
	DialTimeoutMs    int    `toml:"dial-timeout-ms"`
	RequestTimeoutMs int    `toml:"request-timeout-ms"`
}

// logConf mirrors dtn7-go's logConf block.
type logConf struct {
	Level string
}

// DefaultConfig returns the config satproxyd runs with when no file is
// given, matching the component defaults each package already documents.
func DefaultConfig() Config {
	return Config{
		Listen: listenConf{Address: ":4433"},
		Timing: timingConf{
			AdaptiveRTO: false,
		},
		Accelerator: acceleratorConf{
			Enabled:          false,
			DialTimeoutMs:    1000,
			RequestTimeoutMs: 5000,
		},
		Logging: logConf{Level: ""},
	}
}

// LoadConfig decodes path into a Config seeded with DefaultConfig, so a
// file that only sets a handful of fields still yields a complete Config.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return Config{}, fmt.Errorf("satproxy: loading config %q: %w", path, err)
	}
	return conf, nil
}

// DialTimeout returns the accelerator dial timeout as a time.Duration,
// falling back to a conservative default if unset or invalid.
func (c acceleratorConf) DialTimeout() time.Duration {
	if c.DialTimeoutMs <= 0 {
		return time.Second
	}
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the per-call accelerator timeout as a
// time.Duration.
func (c acceleratorConf) RequestTimeout() time.Duration {
	if c.RequestTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}
