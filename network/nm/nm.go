package nm

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.freedesktop.NetworkManager"
	busPath      = "/org/freedesktop/NetworkManager"
	settingsPath = "/org/freedesktop/NetworkManager/Settings"

	nmInterface                = "org.freedesktop.NetworkManager"
	settingsInterface          = "org.freedesktop.NetworkManager.Settings"
	settingsConnInterface      = "org.freedesktop.NetworkManager.Settings.Connection"
	deviceInterface            = "org.freedesktop.NetworkManager.Device"
	wirelessInterface          = "org.freedesktop.NetworkManager.Device.Wireless"
	accessPointInterface       = "org.freedesktop.NetworkManager.AccessPoint"
	activeConnectionInterface  = "org.freedesktop.NetworkManager.Connection.Active"
	propertiesInterface        = "org.freedesktop.DBus.Properties"
	propertiesGetAllMethodName = propertiesInterface + ".GetAll"
)

// Nm is a client of the NetworkManager daemon on the system bus
type Nm struct {
	conn     *dbus.Conn
	obj      dbus.BusObject
	settings dbus.BusObject
}

func New() *Nm {
	return &Nm{}
}

func (n *Nm) Start() error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return errors.Errorf("could not connect to system bus: %v", err)
	}

	n.conn = conn
	n.obj = conn.Object(busName, busPath)
	n.settings = conn.Object(busName, settingsPath)

	return nil
}

func (n *Nm) Stop() error {
	if n.conn == nil {
		return nil
	}

	err := n.conn.Close()
	if err != nil {
		return errors.Errorf("could not close system bus connection: %v", err)
	}

	n.conn = nil

	return nil
}

func (n *Nm) Devices() ([]*Device, error) {
	call := n.obj.Call(nmInterface+".GetDevices", 0)
	if call.Err != nil {
		return nil, errors.Errorf("could not get devices: %v", call.Err)
	}

	var paths []dbus.ObjectPath
	err := call.Store(&paths)
	if err != nil {
		return nil, errors.Errorf("could not store devices: %v", err)
	}

	var devices []*Device

	for _, path := range paths {
		devices = append(devices, n.Device(path))
	}

	return devices, nil
}

func (n *Nm) Device(path dbus.ObjectPath) *Device {
	return &Device{
		nm:  n,
		obj: n.conn.Object(busName, path),
	}
}

func (n *Nm) Connection(path dbus.ObjectPath) *Connection {
	return &Connection{
		nm:  n,
		obj: n.conn.Object(busName, path),
	}
}

func (n *Nm) ActiveConnection(path dbus.ObjectPath) *ActiveConnection {
	return &ActiveConnection{
		nm:  n,
		obj: n.conn.Object(busName, path),
	}
}

// AddConnection stores a new connection profile without activating it
func (n *Nm) AddConnection(ctx context.Context, settings Settings) (*Connection, error) {
	call := n.settings.CallWithContext(ctx, settingsInterface+".AddConnection", 0, settings)
	if call.Err != nil {
		return nil, errors.Errorf("could not add connection: %w", call.Err)
	}

	var path dbus.ObjectPath
	err := call.Store(&path)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return n.Connection(path), nil
}

func (n *Nm) ActivateConnection(ctx context.Context, conn *Connection, device *Device) (*ActiveConnection, error) {
	call := n.obj.CallWithContext(ctx, nmInterface+".ActivateConnection", 0, conn.obj.Path(), device.obj.Path(), dbus.ObjectPath("/"))
	if call.Err != nil {
		return nil, errors.Errorf("could not activate connection: %w", call.Err)
	}

	var path dbus.ObjectPath
	err := call.Store(&path)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return n.ActiveConnection(path), nil
}

func (n *Nm) DeactivateConnection(ctx context.Context, active *ActiveConnection) error {
	call := n.obj.CallWithContext(ctx, nmInterface+".DeactivateConnection", 0, active.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not deactivate connection: %w", call.Err)
	}

	return nil
}

// subscribe delivers the signals matching options until the returned
// function is called
func (n *Nm) subscribe(options ...dbus.MatchOption) (<-chan *dbus.Signal, func(), error) {
	err := n.conn.AddMatchSignal(options...)
	if err != nil {
		return nil, nil, errors.Errorf("could not add signal: %v", err)
	}

	signals := make(chan *dbus.Signal, 10)
	n.conn.Signal(signals)

	return signals, func() {
		n.conn.RemoveSignal(signals)
		_ = n.conn.RemoveMatchSignal(options...)
	}, nil
}

func (n *Nm) getAll(obj dbus.BusObject, iface string) (map[string]dbus.Variant, error) {
	call := obj.Call(propertiesGetAllMethodName, 0, iface)
	if call.Err != nil {
		return nil, errors.Errorf("could not get all properties: %v", call.Err)
	}

	props, ok := call.Body[0].(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Errorf("could not convert output")
	}

	return props, nil
}
