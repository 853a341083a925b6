package network

import (
	"sort"

	"github.com/go-errors/errors"
)

// FindDevice picks the wifi device with the given interface name, or the
// first wifi device if iface is empty.
func FindDevice(devices []*Device, iface string) (*Device, error) {
	for _, device := range devices {
		if device.Type != DeviceTypeWifi {
			continue
		}

		if iface == "" || device.Interface == iface {
			return device, nil
		}
	}

	if iface != "" {
		return nil, errors.Errorf("%w: interface %v", ErrNoWifiDevice, iface)
	}

	return nil, ErrNoWifiDevice
}

// FilterAccessPoints removes hidden networks and keeps only the strongest
// access point of each SSID, strongest first.
func FilterAccessPoints(aps []*AccessPoint) []*AccessPoint {
	bySsid := make(map[string]*AccessPoint)
	filtered := []*AccessPoint{}

	for _, ap := range aps {
		if ap == nil || ap.Ssid == "" {
			continue
		}

		if seen, ok := bySsid[ap.Ssid]; ok {
			if ap.Strength > seen.Strength {
				*seen = *ap
			}
			continue
		}

		copied := *ap
		bySsid[ap.Ssid] = &copied
		filtered = append(filtered, &copied)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Strength > filtered[j].Strength
	})

	return filtered
}
