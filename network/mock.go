package network

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

// check MockNetwork compliance to its interface during compile time
var _ Network = (*MockNetwork)(nil)

var (
	ErrWrongPassword  = errors.New("wrong password")
	ErrOutOfRange     = errors.New("network out of range")
	ErrBothActive     = errors.New("hotspot and client connection would be active at the same time")
	ErrUnknownProfile = errors.New("unknown connection profile")
)

type MockConfig struct {
	Devices      []*Device
	AccessPoints []*AccessPoint
	// Passwords maps SSIDs to the only password that joins them.
	// Networks without an entry accept any password.
	Passwords map[string]string
	// JoinDelay is how long an activation of a client connection takes
	JoinDelay  time.Duration
	HotspotErr error
	ScanErr    error
	// DeactivateErr and DeleteErr fail every Deactivate or Delete of a
	// connection in the given mode
	DeactivateErr map[Mode]error
	DeleteErr     map[Mode]error
	Logger        Logger
}

type mockProfile struct {
	conn     *Connection
	password string
	active   bool
}

// MockNetwork is an in-memory network backend. It refuses to activate a
// hotspot and a client connection at the same time and records every
// operation in order.
type MockNetwork struct {
	log        Logger
	config     MockConfig
	mu         sync.Mutex
	profiles   map[string]*mockProfile
	nextRef    int
	events     []string
	violations int
}

func NewMockNetwork(config *MockConfig) *MockNetwork {
	n := &MockNetwork{
		profiles: make(map[string]*mockProfile),
	}

	if config != nil {
		n.config = *config
	}

	if n.config.Logger != nil {
		n.log = n.config.Logger
	} else {
		n.log = noopLogger{}
	}

	if len(n.config.Devices) == 0 {
		n.config.Devices = []*Device{{Interface: "wlan0", Type: DeviceTypeWifi, Ref: "mock/wlan0"}}
	}

	return n
}

func (n *MockNetwork) Start() error {
	n.record("start")
	return nil
}

func (n *MockNetwork) Stop() error {
	n.record("stop")
	return nil
}

func (n *MockNetwork) ListDevices() ([]*Device, error) {
	return n.config.Devices, nil
}

func (n *MockNetwork) Scan(ctx context.Context, device *Device) ([]*AccessPoint, error) {
	n.record("scan " + device.Interface)

	if n.config.ScanErr != nil {
		return nil, opError("scan", n.config.ScanErr)
	}

	return FilterAccessPoints(n.config.AccessPoints), nil
}

func (n *MockNetwork) CreateHotspot(ctx context.Context, device *Device, ssid string, password string) (*Connection, error) {
	if n.config.HotspotErr != nil {
		n.record("create failed hotspot " + ssid)
		return nil, opError("create hotspot", n.config.HotspotErr)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.activeLocked(ModeClient) {
		n.violations++
		return nil, opError("create hotspot", ErrBothActive)
	}

	conn := n.addLocked(device, ssid, ModeHotspot)
	n.profiles[conn.Ref].active = true
	conn.ActiveRef = conn.Ref
	n.recordLocked("create hotspot " + ssid)

	return conn, nil
}

func (n *MockNetwork) CreateClientConnection(device *Device, ssid string, password string) (*Connection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	conn := n.addLocked(device, ssid, ModeClient)
	n.profiles[conn.Ref].password = password
	n.recordLocked("create client " + ssid)

	return conn, nil
}

func (n *MockNetwork) Activate(ctx context.Context, conn *Connection) error {
	n.mu.Lock()
	profile, ok := n.profiles[conn.Ref]
	if !ok {
		n.mu.Unlock()
		return opError("activate "+conn.String(), ErrUnknownProfile)
	}

	other := ModeClient
	if conn.Mode == ModeClient {
		other = ModeHotspot
	}

	if n.activeLocked(other) {
		n.violations++
		n.mu.Unlock()
		return opError("activate "+conn.String(), ErrBothActive)
	}

	n.recordLocked("activate " + conn.String())
	n.mu.Unlock()

	if n.config.JoinDelay > 0 && conn.Mode == ModeClient {
		select {
		case <-time.After(n.config.JoinDelay):
		case <-ctx.Done():
			n.record("activate timed out " + conn.String())
			return opError("activate "+conn.String(), ctx.Err())
		}
	}

	if conn.Mode == ModeClient {
		if !n.inRange(conn.Ssid) {
			n.record("activate failed " + conn.String())
			return opError("activate "+conn.String(), ErrOutOfRange)
		}

		if expected, ok := n.config.Passwords[conn.Ssid]; ok && expected != profile.password {
			n.record("activate failed " + conn.String())
			return opError("activate "+conn.String(), ErrWrongPassword)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	profile.active = true
	conn.ActiveRef = conn.Ref

	return nil
}

func (n *MockNetwork) Deactivate(ctx context.Context, conn *Connection) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	profile, ok := n.profiles[conn.Ref]
	if !ok {
		return opError("deactivate "+conn.String(), ErrUnknownProfile)
	}

	if err := n.config.DeactivateErr[conn.Mode]; err != nil {
		n.recordLocked("deactivate failed " + conn.String())
		return opError("deactivate "+conn.String(), err)
	}

	profile.active = false
	conn.ActiveRef = ""
	n.recordLocked("deactivate " + conn.String())

	return nil
}

func (n *MockNetwork) Delete(ctx context.Context, conn *Connection) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.profiles[conn.Ref]; !ok {
		return opError("delete "+conn.String(), ErrUnknownProfile)
	}

	if err := n.config.DeleteErr[conn.Mode]; err != nil {
		n.recordLocked("delete failed " + conn.String())
		return opError("delete "+conn.String(), err)
	}

	// deleting an active profile deactivates it

	delete(n.profiles, conn.Ref)
	conn.ActiveRef = ""
	n.recordLocked("delete " + conn.String())

	return nil
}

// Events returns all operations performed so far, oldest first
func (n *MockNetwork) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.events...)
}

// Violations counts the refused attempts to have a hotspot and a client
// connection active at the same time
func (n *MockNetwork) Violations() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.violations
}

// Profiles returns the connection profiles that were not deleted yet
func (n *MockNetwork) Profiles() []*Connection {
	n.mu.Lock()
	defer n.mu.Unlock()

	var conns []*Connection
	for _, profile := range n.profiles {
		conns = append(conns, profile.conn)
	}

	return conns
}

// Active returns the active connection of the given mode, if any
func (n *MockNetwork) Active(mode Mode) *Connection {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, profile := range n.profiles {
		if profile.active && profile.conn.Mode == mode {
			return profile.conn
		}
	}

	return nil
}

func (n *MockNetwork) activeLocked(mode Mode) bool {
	for _, profile := range n.profiles {
		if profile.active && profile.conn.Mode == mode {
			return true
		}
	}

	return false
}

func (n *MockNetwork) addLocked(device *Device, ssid string, mode Mode) *Connection {
	n.nextRef++

	conn := &Connection{
		Ssid:   ssid,
		Mode:   mode,
		Device: device,
		Ref:    "mock/" + strconv.Itoa(n.nextRef),
	}

	n.profiles[conn.Ref] = &mockProfile{conn: conn}

	return conn
}

func (n *MockNetwork) inRange(ssid string) bool {
	for _, ap := range n.config.AccessPoints {
		if ap.Ssid == ssid {
			return true
		}
	}

	return false
}

func (n *MockNetwork) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.recordLocked(event)
}

func (n *MockNetwork) recordLocked(event string) {
	n.log.Debugf("Mock network: %v", event)
	n.events = append(n.events, event)
}
