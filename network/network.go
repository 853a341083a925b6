package network

import "context"

type DeviceType uint32

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeEthernet
	DeviceTypeWifi
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeEthernet:
		return "ethernet"
	case DeviceTypeWifi:
		return "wifi"
	default:
		return "unknown"
	}
}

// Device is a network interface known to the backend
type Device struct {
	Interface string
	Type      DeviceType
	// Ref is the backend handle of the device
	Ref string
}

type Security int

const (
	SecurityOpen Security = iota
	SecurityWep
	SecurityWpa
	SecurityEnterprise
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWep:
		return "wep"
	case SecurityWpa:
		return "wpa"
	case SecurityEnterprise:
		return "enterprise"
	default:
		return "invalid"
	}
}

type AccessPoint struct {
	Ssid     string
	Strength uint8
	Security Security
	Ref      string
}

type Mode int

const (
	ModeHotspot Mode = iota
	ModeClient
)

func (m Mode) String() string {
	switch m {
	case ModeHotspot:
		return "hotspot"
	case ModeClient:
		return "client"
	default:
		return "invalid"
	}
}

// Connection is a connection profile on a device. ActiveRef is only set
// while the profile is activated.
type Connection struct {
	Ssid      string
	Mode      Mode
	Device    *Device
	Ref       string
	ActiveRef string
}

func (c *Connection) String() string {
	return c.Mode.String() + " " + c.Ssid
}

// Network controls the wireless devices of the machine. Only one caller
// should create and delete connection profiles on a device.
//
// Operations taking a context return once it is done, with an *OpError
// that reports a timeout if its deadline passed.
type Network interface {
	Start() error
	Stop() error
	ListDevices() ([]*Device, error)
	// Scan returns the access points visible to the device, without hidden networks
	Scan(ctx context.Context, device *Device) ([]*AccessPoint, error)
	CreateHotspot(ctx context.Context, device *Device, ssid string, password string) (*Connection, error)
	// CreateClientConnection adds a client profile without activating it
	CreateClientConnection(device *Device, ssid string, password string) (*Connection, error)
	Activate(ctx context.Context, conn *Connection) error
	Deactivate(ctx context.Context, conn *Connection) error
	Delete(ctx context.Context, conn *Connection) error
}
