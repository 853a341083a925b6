package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobuffalo/packr/v2"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/wificonnect/connectdb"
	"github.com/the-lightning-land/wificonnect/network"
	"github.com/the-lightning-land/wificonnect/portal"
	"github.com/the-lightning-land/wificonnect/provisioner"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

const (
	exitFatal  = 1
	exitGaveUp = 2
)

var (
	// commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// wificonnectMain is the true entry point for wificonnect. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func wificonnectMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// connect.db keeps the history of all join attempts
	connectDB, err := connectdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open connect.db: %v", err)
	}

	log.Infof("Opened connect.db")

	defer func() {
		err := connectDB.Close()
		if err != nil {
			log.Errorf("Could not close connect.db: %v", err)
		} else {
			log.Info("Closed connect.db.")
		}
	}()

	last, err := connectDB.GetLastJoined()
	if err != nil {
		log.Warnf("Could not read last joined network: %v", err)
	} else if last != nil {
		log.Infof("Last joined %v on %v at %v", last.Ssid, last.Interface, last.Joined)
	}

	var n network.Network

	switch cfg.Net {
	case "networkmanager":
		n = network.NewNmNetwork(&network.Config{
			Logger: log.WithField("system", "network"),
		})

		log.Info("Created NetworkManager network.")
	case "mock":
		n = network.NewMockNetwork(&network.MockConfig{
			AccessPoints: []*network.AccessPoint{
				{Ssid: "HomeNet", Strength: 80, Security: network.SecurityWpa},
				{Ssid: "CafeWifi", Strength: 55},
				{Ssid: "Office", Strength: 30, Security: network.SecurityEnterprise},
			},
			Logger: log.WithField("system", "network"),
		})

		log.Info("Created a mock network.")
	default:
		return errors.Errorf("Unknown network type %v", cfg.Net)
	}

	err = n.Start()
	if err != nil {
		return errors.Errorf("Could not start network: %v", err)
	}

	defer func() {
		err := n.Stop()
		if err != nil {
			log.Errorf("Could not properly stop network: %v", err)
		} else {
			log.Info("Stopped network.")
		}
	}()

	devices, err := n.ListDevices()
	if err != nil {
		return errors.Errorf("Could not list devices: %v", err)
	}

	device, err := network.FindDevice(devices, cfg.Interface)
	if err != nil {
		return errors.Errorf("Could not find device: %v", err)
	}

	log.Infof("Using WiFi device %v", device.Interface)

	var assets http.FileSystem
	if cfg.UI != "" {
		assets = http.Dir(cfg.UI)
	} else {
		assets = packr.New("portal", "./ui")
	}

	accessLog := log.WithField("system", "http").WriterLevel(log.DebugLevel)
	defer accessLog.Close()

	store := portal.NewStore()

	web := portal.New(&portal.Config{
		Listen: cfg.Listen,
		Store:  store,
		Scan: func(ctx context.Context) ([]*network.AccessPoint, error) {
			return n.Scan(ctx, device)
		},
		Assets:    assets,
		AccessLog: accessLog,
		Logger:    log.WithField("system", "portal"),
	})

	log.Infof("Created portal.")

	p := provisioner.New(&provisioner.Config{
		Network:        n,
		Store:          store,
		Portal:         web,
		DB:             connectDB,
		JoinTimeout:    cfg.JoinTimeout,
		HotspotTimeout: cfg.HotspotTimeout,
		MaxAttempts:    cfg.Attempts,
		Logger:         log.WithField("system", "provisioner"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping provisioning...")
		cancel()
	}()

	// blocks until a network is joined or provisioning gave up
	joined, err := p.Provision(ctx, &provisioner.Request{
		Device:   device,
		Ssid:     cfg.Ssid,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "Failed provisioning")
	}

	log.Infof("Connected to %v after %d attempts.", joined.Ssid, joined.Attempts)

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := wificonnectMain(); err != nil {
		log.WithError(err).Println("Failed running wificonnect.")

		if errors.Is(err, provisioner.ErrTimedOut) || errors.Is(err, provisioner.ErrAttemptsExhausted) {
			os.Exit(exitGaveUp)
		}

		os.Exit(exitFatal)
	}
}
