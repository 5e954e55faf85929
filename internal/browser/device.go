package browser

import (
	"strings"

	"github.com/go-rod/rod/lib/devices"
)

// ResolveDevice maps a friendly device name to a rod emulation profile.
// Supported names:
//   - "clear" - no emulation, browser fills window (default)
//   - "laptop" - LaptopWithMDPIScreen (1280x800)
//   - "laptop-hidpi" - LaptopWithHiDPIScreen
//   - "iphone-x" - iPhoneX
//   - "iphone-8" - iPhone6or7or8
//   - "pixel-2" - Pixel2
//   - "galaxy-s5" - GalaxyS5
//   - "ipad" - iPad
func ResolveDevice(name string) devices.Device {
	switch strings.ToLower(name) {
	case "", "clear":
		return devices.Clear
	case "laptop":
		return devices.LaptopWithMDPIScreen
	case "laptop-hidpi":
		return devices.LaptopWithHiDPIScreen
	case "iphone-x":
		return devices.IPhoneX
	case "iphone-8":
		return devices.IPhone6or7or8
	case "pixel-2":
		return devices.Pixel2
	case "galaxy-s5":
		return devices.GalaxyS5
	case "ipad":
		return devices.IPad
	default:
		// Unknown device, fall back to no emulation
		return devices.Clear
	}
}
