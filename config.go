package main

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/jessevdk/go-flags"
)

const (
	defaultSsid           = "wifi-connect"
	defaultTimeout        = 10 * time.Minute
	defaultJoinTimeout    = 10 * time.Second
	defaultHotspotTimeout = 10 * time.Second
	defaultAttempts       = 5
	defaultListen         = "0.0.0.0:80"
	defaultDataDir        = "./data"
	defaultNet            = "networkmanager"

	minPasswordLength = 8
	maxPasswordLength = 63
)

type profilingConfig struct {
	Listen string `long:"listen" description:"Address of the profiling server, disabled if empty"`
}

type config struct {
	ShowVersion    bool            `short:"V" long:"version" description:"Display version information and exit"`
	Debug          bool            `long:"debug" description:"Start in debug mode"`
	Interface      string          `short:"i" long:"interface" description:"WiFi interface to use, the first WiFi device if empty"`
	Ssid           string          `short:"s" long:"ssid" description:"SSID of the hotspot"`
	Password       string          `short:"p" long:"password" description:"WPA2 passphrase of the hotspot, an open hotspot if empty"`
	Timeout        time.Duration   `short:"t" long:"timeout" description:"How long to wait for credentials in each hotspot cycle, 0 waits forever"`
	JoinTimeout    time.Duration   `long:"join-timeout" description:"How long joining the chosen network may take"`
	HotspotTimeout time.Duration   `long:"hotspot-timeout" description:"How long starting the hotspot may take"`
	Attempts       int             `long:"attempts" description:"How many hotspot cycles to run before giving up, 0 never gives up"`
	Listen         string          `long:"listen" description:"Address the portal listens on"`
	UI             string          `long:"ui" description:"Directory with the portal web interface, the bundled interface if empty"`
	DataDir        string          `long:"datadir" description:"Directory for the connection history"`
	Net            string          `long:"net" description:"Network backend" choice:"networkmanager" choice:"mock"`
	Profiling      profilingConfig `group:"Profiling" namespace:"profiling"`
}

// loadConfig parses the command line on top of the defaults
func loadConfig() (*config, error) {
	return parseConfig(nil)
}

func parseConfig(args []string) (*config, error) {
	cfg := config{
		Ssid:           defaultSsid,
		Timeout:        defaultTimeout,
		JoinTimeout:    defaultJoinTimeout,
		HotspotTimeout: defaultHotspotTimeout,
		Attempts:       defaultAttempts,
		Listen:         defaultListen,
		DataDir:        defaultDataDir,
		Net:            defaultNet,
	}

	var err error
	if args == nil {
		_, err = flags.Parse(&cfg)
	} else {
		_, err = flags.ParseArgs(&cfg, args)
	}
	if err != nil {
		return nil, err
	}

	err = validateConfig(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.Ssid == "" {
		return errors.New("hotspot ssid must not be empty")
	}

	if len(cfg.Ssid) > 32 {
		return errors.Errorf("hotspot ssid %v is longer than 32 bytes", cfg.Ssid)
	}

	if cfg.Password != "" && (len(cfg.Password) < minPasswordLength || len(cfg.Password) > maxPasswordLength) {
		return errors.Errorf("hotspot password must have %d to %d characters", minPasswordLength, maxPasswordLength)
	}

	if cfg.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	if cfg.JoinTimeout <= 0 || cfg.HotspotTimeout <= 0 {
		return errors.New("join and hotspot timeouts must be positive")
	}

	if cfg.Attempts < 0 {
		return errors.New("attempts must not be negative")
	}

	return nil
}
