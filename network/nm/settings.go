package nm

import (
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// Settings is the a{sa{sv}} connection description NetworkManager expects
type Settings map[string]map[string]dbus.Variant

func wirelessSettings(iface string, ssid string, password string, mode string) Settings {
	connection := map[string]dbus.Variant{
		"id":          dbus.MakeVariant(ssid),
		"uuid":        dbus.MakeVariant(uuid.New().String()),
		"type":        dbus.MakeVariant("802-11-wireless"),
		"autoconnect": dbus.MakeVariant(mode != "ap"),
	}

	if iface != "" {
		connection["interface-name"] = dbus.MakeVariant(iface)
	}

	settings := Settings{
		"connection": connection,
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(ssid)),
			"mode": dbus.MakeVariant(mode),
		},
	}

	if password != "" {
		settings["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(password),
		}
	}

	return settings
}

// HotspotSettings describes an access point sharing the device's
// connectivity. An empty password creates an open hotspot.
func HotspotSettings(iface string, ssid string, password string) Settings {
	settings := wirelessSettings(iface, ssid, password, "ap")
	settings["ipv4"] = map[string]dbus.Variant{
		"method": dbus.MakeVariant("shared"),
	}
	settings["ipv6"] = map[string]dbus.Variant{
		"method": dbus.MakeVariant("ignore"),
	}

	return settings
}

func ClientSettings(iface string, ssid string, password string) Settings {
	settings := wirelessSettings(iface, ssid, password, "infrastructure")
	settings["ipv4"] = map[string]dbus.Variant{
		"method": dbus.MakeVariant("auto"),
	}
	settings["ipv6"] = map[string]dbus.Variant{
		"method": dbus.MakeVariant("auto"),
	}

	return settings
}
