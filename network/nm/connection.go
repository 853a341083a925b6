package nm

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type ActiveState uint32

const (
	ActiveStateUnknown ActiveState = iota
	ActiveStateActivating
	ActiveStateActivated
	ActiveStateDeactivating
	ActiveStateDeactivated
)

func (s ActiveState) String() string {
	switch s {
	case ActiveStateActivating:
		return "ACTIVATING"
	case ActiveStateActivated:
		return "ACTIVATED"
	case ActiveStateDeactivating:
		return "DEACTIVATING"
	case ActiveStateDeactivated:
		return "DEACTIVATED"
	default:
		return "UNKNOWN"
	}
}

// Connection is a stored connection profile
type Connection struct {
	nm  *Nm
	obj dbus.BusObject
}

func (c *Connection) String() string {
	return string(c.obj.Path())
}

func (c *Connection) Path() dbus.ObjectPath {
	return c.obj.Path()
}

func (c *Connection) Delete(ctx context.Context) error {
	call := c.obj.CallWithContext(ctx, settingsConnInterface+".Delete", 0)
	if call.Err != nil {
		return errors.Errorf("could not delete connection: %w", call.Err)
	}

	return nil
}

// ActiveConnection is a profile being activated or active on a device
type ActiveConnection struct {
	nm  *Nm
	obj dbus.BusObject
}

func (a *ActiveConnection) String() string {
	return string(a.obj.Path())
}

func (a *ActiveConnection) Path() dbus.ObjectPath {
	return a.obj.Path()
}

func (a *ActiveConnection) State() (ActiveState, error) {
	v, err := a.obj.GetProperty(activeConnectionInterface + ".State")
	if err != nil {
		return ActiveStateUnknown, errors.Errorf("could not get state: %v", err)
	}

	state, ok := v.Value().(uint32)
	if !ok {
		return ActiveStateUnknown, errors.Errorf("could not convert state: %v", v)
	}

	return ActiveState(state), nil
}

// WaitActivated blocks until the connection reached the activated state.
// It fails when the connection gets deactivated instead, or when ctx is done.
func (a *ActiveConnection) WaitActivated(ctx context.Context) error {
	signals, unsubscribe, err := a.nm.subscribe(
		dbus.WithMatchObjectPath(a.obj.Path()),
		dbus.WithMatchInterface(activeConnectionInterface),
		dbus.WithMatchMember("StateChanged"),
	)
	if err != nil {
		return err
	}

	defer unsubscribe()

	// the state might have changed before the signal was subscribed
	state, err := a.State()
	if err != nil {
		return err
	}

	for {
		switch state {
		case ActiveStateActivated:
			return nil
		case ActiveStateDeactivating, ActiveStateDeactivated:
			return errors.Errorf("connection was %v", state)
		}

		select {
		case signal, ok := <-signals:
			if !ok {
				return errors.New("signal channel closed")
			}

			if signal.Path != a.obj.Path() || signal.Name != activeConnectionInterface+".StateChanged" {
				continue
			}

			if len(signal.Body) == 0 {
				continue
			}

			if value, ok := signal.Body[0].(uint32); ok {
				state = ActiveState(value)
			}
		case <-ctx.Done():
			return errors.Errorf("connection was still %v: %w", state, ctx.Err())
		}
	}
}
