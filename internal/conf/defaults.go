// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults matching the Settings shape, applied
// before the config file is read so any key the user omits still resolves.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "photoacoustic-core")
	viper.SetDefault("main.log.path", "logs/daemon.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 10)
	viper.SetDefault("main.log.maxagedays", 30)
	viper.SetDefault("main.log.level", "info")
	viper.SetDefault("main.log.tostderr", true)

	// Acquisition
	viper.SetDefault("acquisition.source", "microphone")
	viper.SetDefault("acquisition.device", "")
	viper.SetDefault("acquisition.samplerate", 48000)
	viper.SetDefault("acquisition.channels", 2)
	viper.SetDefault("acquisition.queuedepth", 32)

	// Processing graph: a pass-through default (source -> record) so a
	// freshly created instrument boots into a valid, if trivial, graph.
	viper.SetDefault("processing.inputnode", "mic")
	viper.SetDefault("processing.nodes", []map[string]any{
		{"id": "mic", "type": "source_acquisition", "params": map[string]any{}},
		{"id": "rec", "type": "record", "params": map[string]any{
			"file":        "recordings/output.wav",
			"max_size_kb": 0,
		}},
	})
	viper.SetDefault("processing.edges", []map[string]any{
		{"from": "mic", "to": "rec"},
	})

	// Thermal: no buses or regulators by default — an instrument without a
	// thermal stage (e.g. running only the processing graph against a
	// recorded corpus) must not fail to load config.
	viper.SetDefault("thermal.buses", []map[string]any{})
	viper.SetDefault("thermal.regulators", []map[string]any{})

	// HTTP introspection
	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.address", "0.0.0.0")
	viper.SetDefault("http.port", 8090)

	// MQTT action-trigger publishing: disabled by default, since not every
	// instrument has a broker reachable.
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "photoacoustic-core")
	viper.SetDefault("mqtt.topic", "photoacoustic/actions")
}
