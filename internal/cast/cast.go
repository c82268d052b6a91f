// Package cast plays prompts on a Google Cast device (Google Home, Nest)
// on the local network.
package cast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/dns"

	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/speech"
)

// Compile-time interface checks.
var (
	_ speech.Output       = (*Caster)(nil)
	_ speech.OutputHandle = (*Connection)(nil)
)

// ErrDeviceNotFound is returned when discovery finds no matching device.
var ErrDeviceNotFound = errors.New("cast device not found")

const (
	defaultPort      = 8009
	defaultDiscovery = 5 * time.Second
	// Any routable address works; nothing is sent to it.
	defaultProbe = "8.8.8.8:80"
)

// Config selects a device. Addr wins over Name; with neither set the first
// device discovered is used.
type Config struct {
	Name             string
	Addr             string
	Port             int
	DiscoveryTimeout time.Duration
}

// Entry is a discovered device.
type Entry struct {
	Name string
	Addr string
	Port int
}

// device is the part of a cast application session the Connection uses.
type device interface {
	// Load plays url and blocks until the device reports playback done.
	Load(url, contentType string) error
	Close(stopMedia bool) error
}

// Caster is a speech.Output that connects to a cast device per voice
// session.
type Caster struct {
	cfg   Config
	log   *logger.Logger
	probe string

	dial     func(ctx context.Context, addr string, port int) (device, error)
	discover func(ctx context.Context) ([]Entry, error)
}

// New creates a Caster.
func New(cfg Config, log *logger.Logger) *Caster {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = defaultDiscovery
	}
	c := &Caster{cfg: cfg, log: log, probe: defaultProbe}
	c.dial = dialChromecast
	c.discover = c.discoverDNS
	return c
}

// Acquire resolves and connects to the device. The returned Connection
// owns the device session until Release.
func (c *Caster) Acquire(ctx context.Context) (speech.OutputHandle, error) {
	addr, port, name, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	dev, err := c.dial(ctx, addr, port)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s (%s:%d): %w", name, addr, port, err)
	}
	c.log.Debug("cast: connected to %s (%s:%d)", name, addr, port)
	return &Connection{dev: dev, name: name, probe: c.probe, log: c.log}, nil
}

func (c *Caster) resolve(ctx context.Context) (addr string, port int, name string, err error) {
	if c.cfg.Addr != "" {
		return c.cfg.Addr, c.cfg.Port, c.cfg.Addr, nil
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()
	entries, err := c.discover(dctx)
	if err != nil {
		return "", 0, "", fmt.Errorf("cast discovery: %w", err)
	}
	if e, ok := pick(entries, c.cfg.Name); ok {
		return e.Addr, e.Port, e.Name, nil
	}
	if c.cfg.Name != "" {
		return "", 0, "", fmt.Errorf("%w: %q", ErrDeviceNotFound, c.cfg.Name)
	}
	return "", 0, "", ErrDeviceNotFound
}

// pick returns the entry named name (case-insensitive), or the first
// entry when name is empty.
func pick(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if name == "" || strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			return e, true
		}
	}
	return Entry{}, false
}

// Discover lists devices answering mDNS within the discovery timeout.
func (c *Caster) Discover(ctx context.Context) ([]Entry, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()
	return c.discover(dctx)
}

// discoverDNS browses for _googlecast._tcp until ctx is done, stopping
// early when the configured name shows up.
func (c *Caster) discoverDNS(ctx context.Context) ([]Entry, error) {
	ch, err := dns.DiscoverCastDNSEntries(ctx, nil)
	if err != nil {
		return nil, err
	}
	var out []Entry
	seen := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			return out, nil
		case e, ok := <-ch:
			if !ok {
				return out, nil
			}
			entry := Entry{Name: e.DeviceName, Addr: e.AddrV4.String(), Port: e.Port}
			if seen[entry.Addr] {
				continue
			}
			seen[entry.Addr] = true
			c.log.Debug("cast: found %q at %s:%d", entry.Name, entry.Addr, entry.Port)
			out = append(out, entry)
			if c.cfg.Name != "" && strings.EqualFold(entry.Name, c.cfg.Name) {
				return out, nil
			}
		}
	}
}

// ── Connection ───────────────────────────────────────────────────

var clipSeq atomic.Int64

// Connection is an acquired device session.
type Connection struct {
	dev   device
	name  string
	probe string
	log   *logger.Logger

	mu     sync.Mutex
	closed bool
}

// Play serves wav over HTTP and has the device fetch and play it. It
// blocks until playback ends or ctx is done.
func (c *Connection) Play(ctx context.Context, wav []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("cast: connection released")
	}

	ip, err := lanIP(c.probe)
	if err != nil {
		return err
	}
	srv, err := serveClip(wav, fmt.Sprintf("clip-%d.wav", clipSeq.Add(1)), c.log)
	if err != nil {
		return err
	}
	defer srv.Close()

	url := srv.URL(ip)
	c.log.Debug("cast: %s loading %s", c.name, url)

	done := make(chan error, 1)
	go func() { done <- c.dev.Load(url, "audio/wav") }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("cast: %s load: %w", c.name, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release disconnects from the device. Later calls are no-ops.
func (c *Connection) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.dev.Close(false); err != nil {
		return fmt.Errorf("cast: disconnecting %s: %w", c.name, err)
	}
	c.log.Debug("cast: disconnected from %s", c.name)
	return nil
}

// ── go-chromecast adapter ────────────────────────────────────────

type chromecast struct {
	app *application.Application
}

func dialChromecast(_ context.Context, addr string, port int) (device, error) {
	app := application.NewApplication()
	if err := app.Start(addr, port); err != nil {
		return nil, err
	}
	return chromecast{app: app}, nil
}

// Load blocks until the media finishes because detach is false.
func (c chromecast) Load(url, contentType string) error {
	return c.app.Load(url, 0, contentType, false, false, false)
}

func (c chromecast) Close(stopMedia bool) error {
	return c.app.Close(stopMedia)
}
