package network

import (
	"context"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock(config *MockConfig) (*MockNetwork, *Device) {
	if config.AccessPoints == nil {
		config.AccessPoints = []*AccessPoint{
			{Ssid: "HomeNet", Strength: 70, Security: SecurityWpa},
			{Ssid: "CafeWifi", Strength: 50},
			{Ssid: "", Strength: 90},
		}
	}

	n := NewMockNetwork(config)
	devices, _ := n.ListDevices()

	return n, devices[0]
}

func TestMockScanFiltersHiddenNetworks(t *testing.T) {
	n, device := newTestMock(&MockConfig{})

	aps, err := n.Scan(context.Background(), device)
	require.NoError(t, err)

	require.Len(t, aps, 2)
	assert.Equal(t, "HomeNet", aps[0].Ssid)
	assert.Equal(t, "CafeWifi", aps[1].Ssid)
}

func TestMockJoin(t *testing.T) {
	n, device := newTestMock(&MockConfig{
		Passwords: map[string]string{"HomeNet": "correct"},
	})

	conn, err := n.CreateClientConnection(device, "HomeNet", "correct")
	require.NoError(t, err)
	require.NoError(t, n.Activate(context.Background(), conn))
	assert.Equal(t, conn, n.Active(ModeClient))

	conn, err = n.CreateClientConnection(device, "HomeNet", "wrong")
	require.NoError(t, err)
	err = n.Activate(context.Background(), conn)
	assert.True(t, errors.Is(err, ErrWrongPassword))
	assert.False(t, IsTimeout(err))

	conn, err = n.CreateClientConnection(device, "Unknown", "x")
	require.NoError(t, err)
	err = n.Activate(context.Background(), conn)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMockJoinTimeout(t *testing.T) {
	n, device := newTestMock(&MockConfig{JoinDelay: time.Second})

	conn, err := n.CreateClientConnection(device, "HomeNet", "correct")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = n.Activate(ctx, conn)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Nil(t, n.Active(ModeClient))
}

func TestMockRefusesHotspotAndClient(t *testing.T) {
	n, device := newTestMock(&MockConfig{})
	ctx := context.Background()

	hotspot, err := n.CreateHotspot(ctx, device, "wifi-connect", "")
	require.NoError(t, err)

	client, err := n.CreateClientConnection(device, "HomeNet", "correct")
	require.NoError(t, err)

	err = n.Activate(ctx, client)
	assert.True(t, errors.Is(err, ErrBothActive))
	assert.Equal(t, 1, n.Violations())

	require.NoError(t, n.Deactivate(ctx, hotspot))
	require.NoError(t, n.Delete(ctx, hotspot))
	require.NoError(t, n.Activate(ctx, client))

	_, err = n.CreateHotspot(ctx, device, "wifi-connect", "")
	assert.True(t, errors.Is(err, ErrBothActive))
	assert.Equal(t, 2, n.Violations())

	assert.Equal(t, []string{
		"create hotspot wifi-connect",
		"create client HomeNet",
		"deactivate hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"activate client HomeNet",
	}, n.Events())
}

func TestMockDeleteUnknown(t *testing.T) {
	n, _ := newTestMock(&MockConfig{})

	err := n.Delete(context.Background(), &Connection{Ssid: "x", Ref: "mock/42"})
	assert.True(t, errors.Is(err, ErrUnknownProfile))
}

func TestOpError(t *testing.T) {
	err := opError("activate client HomeNet", context.DeadlineExceeded)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, "activate client HomeNet timed out: context deadline exceeded", err.Error())

	err = opError("delete hotspot x", errors.New("boom"))
	assert.False(t, IsTimeout(err))
	assert.Equal(t, "delete hotspot x failed: boom", err.Error())
}

func TestMockCleanupFailures(t *testing.T) {
	n, device := newTestMock(&MockConfig{
		DeactivateErr: map[Mode]error{ModeHotspot: errors.New("bus timeout")},
		DeleteErr:     map[Mode]error{ModeClient: errors.New("permission denied")},
	})
	ctx := context.Background()

	hotspot, err := n.CreateHotspot(ctx, device, "wifi-connect", "")
	require.NoError(t, err)

	err = n.Deactivate(ctx, hotspot)
	assert.EqualError(t, err, "deactivate hotspot wifi-connect failed: bus timeout")
	assert.NotNil(t, n.Active(ModeHotspot))

	// deleting the profile still takes the hotspot down
	require.NoError(t, n.Delete(ctx, hotspot))
	assert.Nil(t, n.Active(ModeHotspot))

	client, err := n.CreateClientConnection(device, "HomeNet", "x")
	require.NoError(t, err)

	err = n.Delete(ctx, client)
	assert.EqualError(t, err, "delete client HomeNet failed: permission denied")
	assert.Len(t, n.Profiles(), 1)

	assert.Equal(t, []string{
		"create hotspot wifi-connect",
		"deactivate failed hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"create client HomeNet",
		"delete failed client HomeNet",
	}, n.Events())
}
