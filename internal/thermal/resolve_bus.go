package thermal

import (
	"fmt"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

// ResolveBus is the production BusFactory: it builds a NativeBus for
// "native"/"usb_bridge" buses and a MockBus for "mock" (spec.md §6).
func ResolveBus(cfg conf.I2CBusConfig) (Bus, error) {
	switch cfg.Type {
	case "native", "usb_bridge":
		return NewNativeBus(cfg.Name, cfg.Settings)
	case "mock":
		ambient, gain := 22.0, 5.0
		if v, ok := cfg.Settings["ambient_c"].(float64); ok {
			ambient = v
		}
		if v, ok := cfg.Settings["gain"].(float64); ok {
			gain = v
		}
		return NewMockBus(cfg.Name, ambient, gain), nil
	default:
		return nil, fmt.Errorf("unknown thermal bus type %q for bus %q", cfg.Type, cfg.Name)
	}
}
