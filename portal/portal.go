package portal

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/wificonnect/network"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
)

// ScanFunc performs a fresh scan for access points
type ScanFunc func(ctx context.Context) ([]*network.AccessPoint, error)

type Config struct {
	Listen string
	Store  *Store
	Scan   ScanFunc
	// Assets holds the portal web interface, served for all other paths
	Assets http.FileSystem
	// AccessLog receives a line per request if set
	AccessLog io.Writer
	Logger    Logger
}

// Portal is the captive portal web server. It can be started and stopped
// repeatedly, once per hotspot cycle.
type Portal struct {
	listen  string
	store   *Store
	scan    ScanFunc
	router  *mux.Router
	handler http.Handler
	log     Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func New(config *Config) *Portal {
	portal := &Portal{
		listen: config.Listen,
		store:  config.Store,
		scan:   config.Scan,
		router: mux.NewRouter(),
	}

	if config.Logger != nil {
		portal.log = config.Logger
	} else {
		portal.log = noopLogger{}
	}

	portal.router.Handle("/ssids", portal.handleGetSsids()).Methods(http.MethodGet)
	portal.router.Handle("/connect", portal.handlePostConnect()).Methods(http.MethodPost)

	if config.Assets != nil {
		portal.router.PathPrefix("/").Handler(portal.handleStatic(config.Assets)).Methods(http.MethodGet, http.MethodHead)
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{portal.log}),
		handlers.PrintRecoveryStack(false),
	)

	portal.handler = recovery(portal.router)

	if config.AccessLog != nil {
		portal.handler = handlers.CombinedLoggingHandler(config.AccessLog, portal.handler)
	}

	return portal
}

func (p *Portal) Handler() http.Handler {
	return p.handler
}

// Start binds the listen address and serves requests in the background
func (p *Portal) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		return errors.New("portal is already running")
	}

	lis, err := net.Listen("tcp", p.listen)
	if err != nil {
		return errors.Errorf("could not listen on %v: %v", p.listen, err)
	}

	server := &http.Server{
		Handler:      p.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	p.server = server
	p.listener = lis

	go func() {
		err := server.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			p.log.Errorf("Could not serve portal: %v", err)
		}
	}()

	p.log.Infof("Serving portal on %v", lis.Addr())

	return nil
}

// Stop stops accepting requests and waits for in-flight requests until
// ctx is done
func (p *Portal) Stop(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.listener = nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}

	err := server.Shutdown(ctx)
	if err != nil {
		_ = server.Close()
		return errors.Errorf("could not shut down portal: %v", err)
	}

	p.log.Infof("Stopped portal")

	return nil
}

// Addr returns the bound address while the portal is running
func (p *Portal) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener == nil {
		return nil
	}

	return p.listener.Addr()
}

type recoveryLogger struct {
	log Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.log.Errorf("Recovered from panic in portal handler: %v", args)
}
