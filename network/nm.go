package network

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wificonnect/network/nm"
)

// check NmNetwork compliance to its interface during compile time
var _ Network = (*NmNetwork)(nil)

const (
	// how long a scan may take before the already known access points are used
	scanTimeout = 10 * time.Second
	// bounds calls made without a caller context
	callTimeout = 10 * time.Second
)

type Config struct {
	Logger Logger
}

type NmNetwork struct {
	log Logger
	nm  *nm.Nm
	// active connections by their profile path
	active   map[string]*nm.ActiveConnection
	activeMu sync.Mutex
}

func NewNmNetwork(config *Config) *NmNetwork {
	net := &NmNetwork{
		nm:     nm.New(),
		active: make(map[string]*nm.ActiveConnection),
	}

	if config != nil && config.Logger != nil {
		net.log = config.Logger
	} else {
		net.log = noopLogger{}
	}

	return net
}

func (n *NmNetwork) Start() error {
	err := n.nm.Start()
	if err != nil {
		return errors.Errorf("could not start network manager client: %v", err)
	}

	return nil
}

func (n *NmNetwork) Stop() error {
	err := n.nm.Stop()
	if err != nil {
		return errors.Errorf("could not stop network manager client: %v", err)
	}

	return nil
}

func (n *NmNetwork) ListDevices() ([]*Device, error) {
	nmDevices, err := n.nm.Devices()
	if err != nil {
		return nil, opError("list devices", err)
	}

	var devices []*Device

	for _, nmDevice := range nmDevices {
		iface, err := nmDevice.Interface()
		if err != nil {
			n.log.Warnf("Skipping device %v: %v", nmDevice, err)
			continue
		}

		nmType, err := nmDevice.DeviceType()
		if err != nil {
			n.log.Warnf("Skipping device %v: %v", nmDevice, err)
			continue
		}

		device := &Device{
			Interface: iface,
			Ref:       string(nmDevice.Path()),
		}

		switch nmType {
		case nm.DeviceTypeWifi:
			device.Type = DeviceTypeWifi
		case nm.DeviceTypeEthernet:
			device.Type = DeviceTypeEthernet
		default:
			device.Type = DeviceTypeUnknown
		}

		devices = append(devices, device)
	}

	return devices, nil
}

func (n *NmNetwork) Scan(ctx context.Context, device *Device) ([]*AccessPoint, error) {
	nmDevice := n.nm.Device(dbus.ObjectPath(device.Ref))

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	// NetworkManager rejects scans while the radio is in AP mode or
	// scanned recently, in which case the cached results are used
	err := nmDevice.Scan(scanCtx)
	if err != nil {
		n.log.Debugf("Using cached access points of %v: %v", device.Interface, err)
	}

	nmAps, err := nmDevice.AccessPoints()
	if err != nil {
		return nil, opError("scan", err)
	}

	var aps []*AccessPoint

	for _, nmAp := range nmAps {
		ap, err := nmAp.GetAll()
		if err != nil {
			// access points can vanish between listing and reading them
			continue
		}

		aps = append(aps, &AccessPoint{
			Ssid:     ap.Ssid,
			Strength: ap.Strength,
			Security: security(ap),
			Ref:      nmAp.String(),
		})
	}

	return FilterAccessPoints(aps), nil
}

func security(ap *nm.Ap) Security {
	keyMgmt := ap.WpaFlags | ap.RsnFlags

	switch {
	case keyMgmt&(nm.ApSecKeyMgmt8021X|nm.ApSecKeyMgmtEapSuiteB19) != 0:
		return SecurityEnterprise
	case keyMgmt != 0:
		return SecurityWpa
	case ap.Flags&nm.ApFlagsPrivacy != 0:
		return SecurityWep
	default:
		return SecurityOpen
	}
}

func (n *NmNetwork) CreateHotspot(ctx context.Context, device *Device, ssid string, password string) (*Connection, error) {
	profile, err := n.nm.AddConnection(ctx, nm.HotspotSettings(device.Interface, ssid, password))
	if err != nil {
		return nil, opError("create hotspot", err)
	}

	conn := &Connection{
		Ssid:   ssid,
		Mode:   ModeHotspot,
		Device: device,
		Ref:    string(profile.Path()),
	}

	err = n.activate(ctx, conn)
	if err != nil {
		// ctx may already be done
		cleanupCtx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		if err := profile.Delete(cleanupCtx); err != nil {
			n.log.Warnf("Could not delete hotspot profile %v: %v", profile, err)
		}

		return nil, opError("activate hotspot", err)
	}

	return conn, nil
}

func (n *NmNetwork) CreateClientConnection(device *Device, ssid string, password string) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	profile, err := n.nm.AddConnection(ctx, nm.ClientSettings(device.Interface, ssid, password))
	if err != nil {
		return nil, opError("create client connection", err)
	}

	return &Connection{
		Ssid:   ssid,
		Mode:   ModeClient,
		Device: device,
		Ref:    string(profile.Path()),
	}, nil
}

func (n *NmNetwork) Activate(ctx context.Context, conn *Connection) error {
	err := n.activate(ctx, conn)
	if err != nil {
		return opError("activate "+conn.String(), err)
	}

	return nil
}

func (n *NmNetwork) activate(ctx context.Context, conn *Connection) error {
	active, err := n.nm.ActivateConnection(
		ctx,
		n.nm.Connection(dbus.ObjectPath(conn.Ref)),
		n.nm.Device(dbus.ObjectPath(conn.Device.Ref)),
	)
	if err != nil {
		return err
	}

	n.activeMu.Lock()
	n.active[conn.Ref] = active
	n.activeMu.Unlock()

	conn.ActiveRef = string(active.Path())

	err = active.WaitActivated(ctx)
	if err != nil {
		n.forget(conn)
		return err
	}

	return nil
}

func (n *NmNetwork) Deactivate(ctx context.Context, conn *Connection) error {
	active := n.forget(conn)
	if active == nil {
		return nil
	}

	err := n.nm.DeactivateConnection(ctx, active)
	if err != nil {
		return opError("deactivate "+conn.String(), err)
	}

	return nil
}

func (n *NmNetwork) Delete(ctx context.Context, conn *Connection) error {
	n.forget(conn)

	err := n.nm.Connection(dbus.ObjectPath(conn.Ref)).Delete(ctx)
	if err != nil {
		return opError("delete "+conn.String(), err)
	}

	return nil
}

// forget drops the active connection of conn, which it returns if known
func (n *NmNetwork) forget(conn *Connection) *nm.ActiveConnection {
	n.activeMu.Lock()
	defer n.activeMu.Unlock()

	active := n.active[conn.Ref]
	delete(n.active, conn.Ref)
	conn.ActiveRef = ""

	return active
}
