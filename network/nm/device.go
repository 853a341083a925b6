package nm

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	DeviceTypeEthernet uint32 = 1
	DeviceTypeWifi     uint32 = 2
)

type Device struct {
	nm  *Nm
	obj dbus.BusObject
}

func (d *Device) String() string {
	return string(d.obj.Path())
}

func (d *Device) Path() dbus.ObjectPath {
	return d.obj.Path()
}

func (d *Device) Interface() (string, error) {
	v, err := d.obj.GetProperty(deviceInterface + ".Interface")
	if err != nil {
		return "", errors.Errorf("could not get interface: %v", err)
	}

	iface, ok := v.Value().(string)
	if !ok {
		return "", errors.Errorf("could not convert interface: %v", v)
	}

	return iface, nil
}

func (d *Device) DeviceType() (uint32, error) {
	v, err := d.obj.GetProperty(deviceInterface + ".DeviceType")
	if err != nil {
		return 0, errors.Errorf("could not get device type: %v", err)
	}

	deviceType, ok := v.Value().(uint32)
	if !ok {
		return 0, errors.Errorf("could not convert device type: %v", v)
	}

	return deviceType, nil
}

func (d *Device) lastScan() (int64, error) {
	v, err := d.obj.GetProperty(wirelessInterface + ".LastScan")
	if err != nil {
		return 0, errors.Errorf("could not get last scan: %v", err)
	}

	lastScan, ok := v.Value().(int64)
	if !ok {
		return 0, errors.Errorf("could not convert last scan: %v", v)
	}

	return lastScan, nil
}

// Scan requests a scan and blocks until the device reports a newer scan
// than before the request, or until ctx is done.
func (d *Device) Scan(ctx context.Context) error {
	signals, unsubscribe, err := d.nm.subscribe(
		dbus.WithMatchObjectPath(d.obj.Path()),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return err
	}

	defer unsubscribe()

	before, err := d.lastScan()
	if err != nil {
		return err
	}

	call := d.obj.CallWithContext(ctx, wirelessInterface+".RequestScan", 0, map[string]dbus.Variant{})
	if call.Err != nil {
		return errors.Errorf("could not request scan: %w", call.Err)
	}

	for {
		select {
		case signal, ok := <-signals:
			if !ok {
				return errors.New("signal channel closed")
			}

			if scanDone(signal, d.obj.Path(), before) {
				return nil
			}
		case <-ctx.Done():
			return errors.Errorf("scan did not finish: %w", ctx.Err())
		}
	}
}

// scanDone reports whether signal announces a LastScan of the wireless
// device at path that differs from before
func scanDone(signal *dbus.Signal, path dbus.ObjectPath, before int64) bool {
	if signal.Path != path || signal.Name != propertiesInterface+".PropertiesChanged" {
		return false
	}

	if len(signal.Body) < 2 {
		return false
	}

	iface, ok := signal.Body[0].(string)
	if !ok || iface != wirelessInterface {
		return false
	}

	changed, ok := signal.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}

	lastScan, ok := changed["LastScan"]
	if !ok {
		return false
	}

	current, ok := lastScan.Value().(int64)

	return ok && current != before
}

func (d *Device) AccessPoints() ([]*AccessPoint, error) {
	call := d.obj.Call(wirelessInterface+".GetAllAccessPoints", 0)
	if call.Err != nil {
		return nil, errors.Errorf("could not get access points: %v", call.Err)
	}

	var paths []dbus.ObjectPath
	err := call.Store(&paths)
	if err != nil {
		return nil, errors.Errorf("could not store access points: %v", err)
	}

	var aps []*AccessPoint

	for _, path := range paths {
		aps = append(aps, &AccessPoint{
			nm:  d.nm,
			obj: d.nm.conn.Object(busName, path),
		})
	}

	return aps, nil
}
