// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig configures the rotating file sink shared by every subsystem
// logger (see internal/logging).
type LogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string
	ToStderr   bool
}

// AcquisitionConfig describes the audio frame source (spec.md §6).
type AcquisitionConfig struct {
	Source     string // "microphone" | "generator"
	Device     string
	SampleRate int
	Channels   int
	QueueDepth int // bounded multi-consumer ring capacity
}

// NodeConfig is one processing-graph node descriptor: an id, a type tag
// resolved against the node registry, and type-specific parameters decoded
// by that node's factory (spec.md §4.1, §6).
type NodeConfig struct {
	ID     string
	Type   string
	Params map[string]any
}

// EdgeConfig connects two node ids; fan-in greater than one is invalid at
// the graph level (spec.md §4.1).
type EdgeConfig struct {
	From string
	To   string
}

// ProcessingConfig is the DAG descriptor consumed by processing.BuildGraph.
type ProcessingConfig struct {
	InputNode string
	Nodes     []NodeConfig
	Edges     []EdgeConfig
}

// I2CBusConfig names one hardware bus available to thermal regulators
// (spec.md §6: "I²C buses are named").
type I2CBusConfig struct {
	Name     string
	Type     string // "native" | "usb_bridge" | "mock"
	Device   string
	Settings map[string]any
}

// TempConversionConfig describes how a raw ADC reading becomes Celsius.
type TempConversionConfig struct {
	Kind              string // "linear" | "polynomial" | "lut"
	Coefficients      []float64
	VRef              float64
	ADCResolutionBits int
	LUTVoltages       []float64
	LUTCelsius        []float64
}

// SafetyLimits bounds a regulator's actuator output and operating range,
// expressed in Kelvin per spec.md §6.
type SafetyLimits struct {
	MinK                  float64
	MaxK                  float64
	EmergencyK            float64
	MaxHeatingDutyPercent float64
	MaxCoolingDutyPercent float64
	MaxConsecutiveErrors  int
}

// RegulatorConfig describes one PID-controlled thermal loop.
type RegulatorConfig struct {
	ID             string
	Name           string
	Enabled        bool
	Bus            string
	ADCChannel     int
	ActuatorIN1    int
	ActuatorIN2    int
	ActuatorEnable int
	HeatingMode    string // "tec" | "resistive"
	Kp, Ki, Kd     float64
	SetpointC      float64
	IMax           float64
	OutMin, OutMax float64
	SamplingHz     float64
	HistoryHours   float64
	TempConversion TempConversionConfig
	Safety         SafetyLimits
}

// ThermalConfig groups the I²C buses and the regulators that use them.
type ThermalConfig struct {
	Buses      []I2CBusConfig
	Regulators []RegulatorConfig
}

// MQTTConfig configures the broker an action-trigger MQTT driver publishes
// to (spec.md §4.4: action drivers include "MQTT publish").
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// HTTPConfig configures the read-only introspection surface. TLS/JWT/OAuth
// belong to the external HTTP/OAuth server named out of scope in spec.md
// §1 and are deliberately absent here.
type HTTPConfig struct {
	Enabled bool
	Address string
	Port    int
}

// Settings is the single hierarchical configuration document (spec.md §6).
type Settings struct {
	Debug bool

	Main struct {
		Name string
		Log  LogConfig
	}

	Acquisition AcquisitionConfig
	Processing  ProcessingConfig
	Thermal     ThermalConfig
	HTTP        HTTPConfig
	MQTT        MQTTConfig
}

var (
	instance   *Settings
	instanceMu sync.RWMutex
)

// Load reads config.yaml (merged with any already-set viper overrides, e.g.
// from CLI flags bound by cmd/photoacoustic-daemon) into a Settings value.
func Load() (*Settings, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	instance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// CLI overrides bound in cmd/root.go: an explicit config file, and an
	// HTTP port that replaces http.port when non-zero.
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	}
	if port := viper.GetInt("http-port"); port > 0 {
		viper.Set("http.port", port)
	}

	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("getting default config paths: %w", err)
	}
	for _, p := range paths {
		viper.AddConfigPath(p)
	}
	viper.AddConfigPath(".")

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig(paths)
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

func createDefaultConfig(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no default config paths available")
	}
	configPath := filepath.Join(paths[0], "config.yaml")
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("reading embedded default config: %w", err)
	}

	if err := mkdirAndWrite(configPath, data); err != nil {
		return err
	}

	log.Printf("created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// ConfigFileUsed returns the path viper resolved the active config file to,
// or "" if none has been loaded yet.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// Current returns the last-loaded settings instance, or nil before Load.
func Current() *Settings {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance
}

// Replace atomically swaps in a new Settings value — used by the config
// file watcher (watch.go) to publish a reloaded snapshot.
func Replace(s *Settings) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = s
}
