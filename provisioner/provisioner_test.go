package provisioner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/wificonnect/connectdb"
	"github.com/the-lightning-land/wificonnect/network"
	"github.com/the-lightning-land/wificonnect/portal"
)

// fakePortal checks that it only runs while the hotspot is active
type fakePortal struct {
	net      *network.MockNetwork
	startErr error

	mu                    sync.Mutex
	starts                int
	stops                 int
	startedWithoutHotspot bool
}

func (f *fakePortal) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.net.Active(network.ModeHotspot) == nil {
		f.startedWithoutHotspot = true
	}

	if f.startErr != nil {
		return f.startErr
	}

	f.starts++

	return nil
}

func (f *fakePortal) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++

	return nil
}

type fixture struct {
	net    *network.MockNetwork
	device *network.Device
	store  *portal.Store
	portal *fakePortal
	p      *Provisioner
}

func newFixture(t *testing.T, mockConfig *network.MockConfig, config *Config) *fixture {
	t.Helper()

	if mockConfig.AccessPoints == nil {
		mockConfig.AccessPoints = []*network.AccessPoint{
			{Ssid: "HomeNet", Strength: 80, Security: network.SecurityWpa},
			{Ssid: "CafeWifi", Strength: 40},
		}
	}

	if mockConfig.Passwords == nil {
		mockConfig.Passwords = map[string]string{"HomeNet": "correct"}
	}

	f := &fixture{
		net:   network.NewMockNetwork(mockConfig),
		store: portal.NewStore(),
	}

	devices, err := f.net.ListDevices()
	require.NoError(t, err)

	f.device, err = network.FindDevice(devices, "wlan0")
	require.NoError(t, err)

	f.portal = &fakePortal{net: f.net}

	if config == nil {
		config = &Config{}
	}

	config.Network = f.net
	config.Store = f.store
	if config.Portal == nil {
		config.Portal = f.portal
	}

	f.p = New(config)

	return f
}

func (f *fixture) request(timeout time.Duration) *Request {
	return &Request{
		Device:  f.device,
		Ssid:    "wifi-connect",
		Timeout: timeout,
	}
}

type result struct {
	joined *JoinedNetwork
	err    error
}

func (f *fixture) provision(ctx context.Context, req *Request) <-chan result {
	results := make(chan result, 1)

	go func() {
		joined, err := f.p.Provision(ctx, req)
		results <- result{joined: joined, err: err}
	}()

	return results
}

func waitForStatus(t *testing.T, p *Provisioner, state State, attempt int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return p.Status() == Status{State: state, Attempt: attempt}
	}, 2*time.Second, time.Millisecond, "never reached %v in attempt %d", state, attempt)
}

func receive(t *testing.T, results <-chan result) result {
	t.Helper()

	select {
	case res := <-results:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("provisioning did not finish")
		return result{}
	}
}

func TestProvisionJoins(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)

	results := f.provision(context.Background(), f.request(time.Minute))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	require.NotNil(t, f.net.Active(network.ModeHotspot))
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))

	res := receive(t, results)
	require.NoError(t, res.err)
	assert.Equal(t, "HomeNet", res.joined.Ssid)
	assert.Equal(t, "wlan0", res.joined.Interface)
	assert.Equal(t, 1, res.joined.Attempts)
	assert.Equal(t, Status{State: Joined, Attempt: 1}, f.p.Status())

	assert.Nil(t, f.net.Active(network.ModeHotspot))
	assert.Equal(t, res.joined.Connection, f.net.Active(network.ModeClient))
	assert.Equal(t, 0, f.net.Violations())
	assert.False(t, f.portal.startedWithoutHotspot)
	assert.Equal(t, 1, f.portal.starts)
	assert.Equal(t, 1, f.portal.stops)

	assert.Equal(t, []string{
		"scan wlan0",
		"create hotspot wifi-connect",
		"deactivate hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"create client HomeNet",
		"activate client HomeNet",
	}, f.net.Events())
}

func TestProvisionRollsBackFailedJoin(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)

	results := f.provision(context.Background(), f.request(time.Minute))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "wrong"}))

	waitForStatus(t, f.p, AwaitingCredentials, 2)
	assert.False(t, f.store.Pending())
	assert.Len(t, f.store.LatestScan(), 2)
	require.NotNil(t, f.net.Active(network.ModeHotspot))

	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))

	res := receive(t, results)
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.joined.Attempts)
	assert.Equal(t, 0, f.net.Violations())
	assert.Len(t, f.net.Profiles(), 1)

	assert.Equal(t, []string{
		"scan wlan0",
		"create hotspot wifi-connect",
		"deactivate hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"create client HomeNet",
		"activate client HomeNet",
		"activate failed client HomeNet",
		"delete client HomeNet",
		"scan wlan0",
		"create hotspot wifi-connect",
		"deactivate hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"create client HomeNet",
		"activate client HomeNet",
	}, f.net.Events())
}

func TestProvisionTimesOut(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)

	res := receive(t, f.provision(context.Background(), f.request(50*time.Millisecond)))

	assert.True(t, errors.Is(res.err, ErrTimedOut))
	assert.Nil(t, res.joined)
	assert.Equal(t, Status{State: TimedOut, Attempt: 1}, f.p.Status())

	assert.Nil(t, f.net.Active(network.ModeHotspot))
	assert.Empty(t, f.net.Profiles())
	assert.Equal(t, 1, f.portal.stops)

	for _, event := range f.net.Events() {
		assert.NotContains(t, event, "client")
	}

	// late credentials are refused
	assert.Equal(t, portal.ErrNotAccepting, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))
}

func TestProvisionCancelled(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	results := f.provision(ctx, f.request(0))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	cancel()

	res := receive(t, results)
	assert.True(t, errors.Is(res.err, ErrCancelled))
	assert.Equal(t, Failed, f.p.Status().State)
	assert.Empty(t, f.net.Profiles())
}

func TestProvisionHotspotFails(t *testing.T) {
	f := newFixture(t, &network.MockConfig{HotspotErr: errors.New("no AP mode")}, nil)

	res := receive(t, f.provision(context.Background(), f.request(time.Minute)))

	assert.True(t, errors.Is(res.err, ErrHotspotCreateFailed))
	assert.Equal(t, Failed, f.p.Status().State)
	assert.Equal(t, 0, f.portal.starts)
}

func TestProvisionPortalFails(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)
	f.portal.startErr = errors.New("address in use")

	res := receive(t, f.provision(context.Background(), f.request(time.Minute)))

	assert.True(t, errors.Is(res.err, ErrPortalStartFailed))
	assert.Empty(t, f.net.Profiles())
	assert.Nil(t, f.net.Active(network.ModeHotspot))
}

func TestProvisionJoinsDespiteHotspotCleanupFailure(t *testing.T) {
	tests := []struct {
		name   string
		config *network.MockConfig
		events []string
	}{
		{
			name: "deactivate fails",
			config: &network.MockConfig{
				DeactivateErr: map[network.Mode]error{network.ModeHotspot: errors.New("bus timeout")},
			},
			events: []string{
				"deactivate failed hotspot wifi-connect",
				"delete hotspot wifi-connect",
			},
		},
		{
			name: "delete fails",
			config: &network.MockConfig{
				DeleteErr: map[network.Mode]error{network.ModeHotspot: errors.New("permission denied")},
			},
			events: []string{
				"deactivate hotspot wifi-connect",
				"delete failed hotspot wifi-connect",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t, test.config, nil)

			results := f.provision(context.Background(), f.request(time.Minute))

			waitForStatus(t, f.p, AwaitingCredentials, 1)
			require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))

			res := receive(t, results)
			require.NoError(t, res.err)
			assert.Equal(t, Status{State: Joined, Attempt: 1}, f.p.Status())
			assert.Equal(t, 0, f.net.Violations())
			assert.Equal(t, 1, f.portal.stops)

			expected := append([]string{
				"scan wlan0",
				"create hotspot wifi-connect",
			}, test.events...)
			expected = append(expected,
				"create client HomeNet",
				"activate client HomeNet",
			)
			assert.Equal(t, expected, f.net.Events())
		})
	}
}

func TestProvisionStopsWhenRollbackFails(t *testing.T) {
	f := newFixture(t, &network.MockConfig{
		DeleteErr: map[network.Mode]error{network.ModeClient: errors.New("permission denied")},
	}, nil)

	results := f.provision(context.Background(), f.request(time.Minute))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "wrong"}))

	res := receive(t, results)
	assert.True(t, errors.Is(res.err, ErrRollbackFailed))
	assert.Nil(t, res.joined)
	assert.Equal(t, Status{State: Failed, Attempt: 1}, f.p.Status())

	// the hotspot never comes back next to the stale client profile
	assert.Nil(t, f.net.Active(network.ModeHotspot))
	assert.Equal(t, 1, f.portal.starts)

	assert.Equal(t, []string{
		"scan wlan0",
		"create hotspot wifi-connect",
		"deactivate hotspot wifi-connect",
		"delete hotspot wifi-connect",
		"create client HomeNet",
		"activate client HomeNet",
		"activate failed client HomeNet",
		"delete failed client HomeNet",
		"delete failed client HomeNet",
		"delete failed client HomeNet",
	}, f.net.Events())
}

func TestProvisionJoinTimeoutExhaustsAttempts(t *testing.T) {
	f := newFixture(t, &network.MockConfig{JoinDelay: time.Second}, &Config{
		JoinTimeout: 20 * time.Millisecond,
		MaxAttempts: 1,
	})

	results := f.provision(context.Background(), f.request(time.Minute))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))

	res := receive(t, results)
	assert.True(t, errors.Is(res.err, ErrAttemptsExhausted))
	assert.Equal(t, Failed, f.p.Status().State)

	// the timed out client connection was rolled back
	assert.Empty(t, f.net.Profiles())
	assert.Contains(t, f.net.Events(), "activate timed out client HomeNet")
	assert.Equal(t, "delete client HomeNet", f.net.Events()[len(f.net.Events())-1])
}

func TestProvisionRecordsHistory(t *testing.T) {
	db, err := connectdb.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	f := newFixture(t, &network.MockConfig{}, &Config{DB: db})

	results := f.provision(context.Background(), f.request(time.Minute))

	waitForStatus(t, f.p, AwaitingCredentials, 1)
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "wrong"}))
	waitForStatus(t, f.p, AwaitingCredentials, 2)
	require.NoError(t, f.store.Submit(&portal.Submission{Ssid: "HomeNet", Password: "correct"}))

	res := receive(t, results)
	require.NoError(t, res.err)

	attempts, err := db.ListAttempts()
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Success)
	assert.Contains(t, attempts[0].Reason, "wrong password")
	assert.True(t, attempts[1].Success)

	last, err := db.GetLastJoined()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "HomeNet", last.Ssid)
	assert.Equal(t, 2, last.Attempts)
}

func TestProvisionWithoutDevice(t *testing.T) {
	f := newFixture(t, &network.MockConfig{}, nil)

	_, err := f.p.Provision(context.Background(), &Request{Ssid: "wifi-connect"})
	assert.Error(t, err)
	assert.Empty(t, f.net.Events())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING CREDENTIALS", AwaitingCredentials.String())
	assert.Equal(t, "ROLLING BACK", RollingBack.String())
	assert.Equal(t, "INVALID STATE", State(99).String())
	assert.True(t, Joined.Terminal())
	assert.True(t, TimedOut.Terminal())
	assert.False(t, Joining.Terminal())
}
