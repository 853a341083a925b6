package nm

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	ApFlagsPrivacy          uint32 = 0x1
	ApSecKeyMgmt8021X       uint32 = 0x200
	ApSecKeyMgmtPsk         uint32 = 0x100
	ApSecKeyMgmtSae         uint32 = 0x400
	ApSecKeyMgmtEapSuiteB19 uint32 = 0x2000
)

type AccessPoint struct {
	nm  *Nm
	obj dbus.BusObject
}

func (a *AccessPoint) String() string {
	return string(a.obj.Path())
}

type Ap struct {
	Ssid     string
	Strength uint8
	Flags    uint32
	WpaFlags uint32
	RsnFlags uint32
}

func (a *AccessPoint) GetAll() (*Ap, error) {
	props, err := a.nm.getAll(a.obj, accessPointInterface)
	if err != nil {
		return nil, err
	}

	ap := Ap{}

	if val, ok := props["Ssid"]; ok {
		if ssid, ok := val.Value().([]byte); ok {
			ap.Ssid = string(ssid)
		} else {
			return nil, errors.Errorf("could not convert Ssid to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property Ssid was missing")
	}

	if val, ok := props["Strength"]; ok {
		if strength, ok := val.Value().(byte); ok {
			ap.Strength = strength
		}
	}

	if val, ok := props["Flags"]; ok {
		if flags, ok := val.Value().(uint32); ok {
			ap.Flags = flags
		}
	}

	if val, ok := props["WpaFlags"]; ok {
		if flags, ok := val.Value().(uint32); ok {
			ap.WpaFlags = flags
		}
	}

	if val, ok := props["RsnFlags"]; ok {
		if flags, ok := val.Value().(uint32); ok {
			ap.RsnFlags = flags
		}
	}

	return &ap, nil
}
