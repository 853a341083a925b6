package provisioner

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wificonnect/connectdb"
	"github.com/the-lightning-land/wificonnect/network"
	"github.com/the-lightning-land/wificonnect/portal"
)

const (
	DefaultJoinTimeout    = 10 * time.Second
	DefaultHotspotTimeout = 10 * time.Second

	// bounds every cleanup call, which must run even after cancellation
	cleanupTimeout = 10 * time.Second
	deleteRetries  = 3
)

// Portal is the web server exposing the store while the hotspot is up
type Portal interface {
	Start() error
	Stop(ctx context.Context) error
}

type Config struct {
	Network network.Network
	Store   *portal.Store
	Portal  Portal
	// DB records all join attempts, optional
	DB             *connectdb.DB
	JoinTimeout    time.Duration
	HotspotTimeout time.Duration
	// MaxAttempts limits the hotspot cycles, 0 means unlimited
	MaxAttempts int
	Logger      Logger
}

// Request describes the hotspot to offer while waiting for credentials
type Request struct {
	Device   *network.Device
	Ssid     string
	Password string
	// Timeout limits how long each hotspot cycle waits for credentials,
	// 0 waits forever
	Timeout time.Duration
}

type JoinedNetwork struct {
	Ssid       string
	Interface  string
	Attempts   int
	Joined     time.Time
	Connection *network.Connection
}

// Provisioner owns the connection profiles of the device while it brings
// it from hotspot mode onto a network
type Provisioner struct {
	network        network.Network
	store          *portal.Store
	portal         Portal
	db             *connectdb.DB
	joinTimeout    time.Duration
	hotspotTimeout time.Duration
	maxAttempts    int
	log            Logger

	statusMu sync.Mutex
	status   Status
}

func New(config *Config) *Provisioner {
	p := &Provisioner{
		network:        config.Network,
		store:          config.Store,
		portal:         config.Portal,
		db:             config.DB,
		joinTimeout:    config.JoinTimeout,
		hotspotTimeout: config.HotspotTimeout,
		maxAttempts:    config.MaxAttempts,
	}

	if config.Logger != nil {
		p.log = config.Logger
	} else {
		p.log = noopLogger{}
	}

	if p.joinTimeout <= 0 {
		p.joinTimeout = DefaultJoinTimeout
	}

	if p.hotspotTimeout <= 0 {
		p.hotspotTimeout = DefaultHotspotTimeout
	}

	return p
}

func (p *Provisioner) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	return p.status
}

func (p *Provisioner) setState(state State) {
	p.statusMu.Lock()
	previous := p.status.State
	p.status.State = state
	attempt := p.status.Attempt
	p.statusMu.Unlock()

	p.log.Debugf("Attempt %d: %v -> %v", attempt, previous, state)
}

func (p *Provisioner) startAttempt(attempt int) {
	p.statusMu.Lock()
	p.status = Status{State: Idle, Attempt: attempt}
	p.statusMu.Unlock()
}

// Provision offers a hotspot with a portal until credentials for a network
// are submitted and that network is joined. A failed join brings the
// hotspot back. It returns ErrTimedOut if no credentials arrive in time.
func (p *Provisioner) Provision(ctx context.Context, req *Request) (*JoinedNetwork, error) {
	if req == nil || req.Device == nil {
		return nil, errors.New("no device to provision")
	}

	for attempt := 1; ; attempt++ {
		if p.maxAttempts > 0 && attempt > p.maxAttempts {
			p.setState(Failed)
			return nil, errors.Errorf("%w after %d attempts", ErrAttemptsExhausted, p.maxAttempts)
		}

		p.startAttempt(attempt)

		submission, err := p.collect(ctx, req)
		if err != nil {
			return nil, err
		}

		conn, err := p.join(ctx, req.Device, submission)
		p.recordAttempt(submission.Ssid, err)

		if err == nil {
			joined := &JoinedNetwork{
				Ssid:       submission.Ssid,
				Interface:  req.Device.Interface,
				Attempts:   attempt,
				Joined:     time.Now(),
				Connection: conn,
			}

			p.setState(Joined)
			p.log.Infof("Joined network %v on %v", joined.Ssid, joined.Interface)
			p.saveJoined(joined)

			return joined, nil
		}

		if errors.Is(err, ErrRollbackFailed) {
			p.setState(Failed)
			return nil, err
		}

		if ctx.Err() != nil {
			p.setState(Failed)
			return nil, errors.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}

		if network.IsTimeout(err) {
			p.log.Warnf("Joining %v timed out, bringing back the hotspot", submission.Ssid)
		} else {
			p.log.Warnf("Could not join %v, bringing back the hotspot: %v", submission.Ssid, err)
		}
	}
}

// collect runs one hotspot cycle. The hotspot and the portal are down again
// when it returns.
func (p *Provisioner) collect(ctx context.Context, req *Request) (*portal.Submission, error) {
	p.store.Reset()

	// the radio can not scan reliably once it is an access point
	p.seedScan(ctx, req.Device)

	hotspotCtx, cancelHotspot := context.WithTimeout(ctx, p.hotspotTimeout)
	hotspot, err := p.network.CreateHotspot(hotspotCtx, req.Device, req.Ssid, req.Password)
	cancelHotspot()
	if err != nil {
		p.setState(Failed)
		return nil, errors.Errorf("%w %v on %v: %v", ErrHotspotCreateFailed, req.Ssid, req.Device.Interface, err)
	}

	p.setState(HotspotActive)
	p.log.Infof("Started hotspot %v on %v", req.Ssid, req.Device.Interface)

	err = p.portal.Start()
	if err != nil {
		p.store.Close()
		p.stopHotspot(hotspot)
		p.setState(Failed)
		return nil, errors.Errorf("%w: %v", ErrPortalStartFailed, err)
	}

	p.setState(PortalServing)

	waitCtx := ctx
	if req.Timeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, req.Timeout)
		defer cancelWait()
	}

	p.setState(AwaitingCredentials)

	submission, err := p.store.Wait(waitCtx)

	p.setState(Stopping)
	p.stopPortal()
	p.store.Close()
	p.stopHotspot(hotspot)

	if err != nil {
		if ctx.Err() != nil {
			p.setState(Failed)
			return nil, errors.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}

		p.setState(TimedOut)
		p.log.Infof("No credentials received within %v", req.Timeout)

		return nil, ErrTimedOut
	}

	return submission, nil
}

func (p *Provisioner) seedScan(ctx context.Context, device *network.Device) {
	aps, err := p.network.Scan(ctx, device)
	if err != nil {
		p.log.Warnf("Could not scan before starting the hotspot: %v", err)
		return
	}

	p.store.SetScan(aps)
	p.log.Debugf("Found %d networks before starting the hotspot", len(aps))
}

// join activates a client connection with the submitted credentials. A
// failed connection is deleted before join returns.
func (p *Provisioner) join(ctx context.Context, device *network.Device, submission *portal.Submission) (*network.Connection, error) {
	p.setState(Joining)
	p.log.Infof("Joining network %v", submission.Ssid)

	conn, err := p.network.CreateClientConnection(device, submission.Ssid, submission.Password)
	if err != nil {
		p.setState(RollingBack)
		return nil, err
	}

	joinCtx, cancel := context.WithTimeout(ctx, p.joinTimeout)
	err = p.network.Activate(joinCtx, conn)
	cancel()

	if err == nil {
		return conn, nil
	}

	p.setState(RollingBack)

	rollbackErr := p.deleteClient(conn)
	if rollbackErr != nil {
		return nil, errors.Errorf("%w %v: %v", ErrRollbackFailed, conn, rollbackErr)
	}

	return nil, err
}

func (p *Provisioner) deleteClient(conn *network.Connection) error {
	var err error

	for i := 0; i < deleteRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		err = p.network.Delete(ctx, conn)
		cancel()

		if err == nil {
			p.log.Infof("Deleted connection %v", conn)
			return nil
		}

		p.log.Warnf("Could not delete connection %v: %v", conn, err)
	}

	return err
}

func (p *Provisioner) stopPortal() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	err := p.portal.Stop(ctx)
	if err != nil {
		p.log.Errorf("Could not properly stop portal: %v", err)
	}
}

func (p *Provisioner) stopHotspot(hotspot *network.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	err := p.network.Deactivate(ctx, hotspot)
	if err != nil {
		p.log.Errorf("Could not deactivate hotspot %v: %v", hotspot.Ssid, err)
	}

	err = p.network.Delete(ctx, hotspot)
	if err != nil {
		p.log.Errorf("Could not delete hotspot %v: %v", hotspot.Ssid, err)
	} else {
		p.log.Infof("Stopped hotspot %v", hotspot.Ssid)
	}
}

func (p *Provisioner) recordAttempt(ssid string, joinErr error) {
	if p.db == nil {
		return
	}

	attempt := &connectdb.Attempt{
		Ssid:    ssid,
		Success: joinErr == nil,
		Time:    time.Now(),
	}

	if joinErr != nil {
		attempt.Reason = joinErr.Error()
	}

	err := p.db.AddAttempt(attempt)
	if err != nil {
		p.log.Warnf("Could not record attempt: %v", err)
	}
}

func (p *Provisioner) saveJoined(joined *JoinedNetwork) {
	if p.db == nil {
		return
	}

	err := p.db.SetLastJoined(&connectdb.JoinedNetwork{
		Ssid:      joined.Ssid,
		Interface: joined.Interface,
		Attempts:  joined.Attempts,
		Joined:    joined.Joined,
	})
	if err != nil {
		p.log.Warnf("Could not save joined network: %v", err)
	}
}
