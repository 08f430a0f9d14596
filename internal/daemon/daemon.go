// Package daemon assembles and runs the bridge: provider reader, session
// manager, reload watchers, notification service, and the API server.
package daemon

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/config"
	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
	"github.com/ccbridge-ai/ccbridge/internal/notification"
	"github.com/ccbridge-ai/ccbridge/internal/procutil"
	"github.com/ccbridge-ai/ccbridge/internal/reload"
	bridgeruntime "github.com/ccbridge-ai/ccbridge/internal/runtime"
	"github.com/ccbridge-ai/ccbridge/internal/server"
	"github.com/ccbridge-ai/ccbridge/internal/session"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
)

// serviceOpTimeout bounds context deadlines for service lifecycle
// operations during shutdown.
const serviceOpTimeout = 5 * time.Second

// Options groups dependencies required to construct a Daemon.
type Options struct {
	Config config.Config
}

// Daemon represents the main bridge process.
type Daemon struct {
	cfg   config.Config
	paths config.BridgePaths

	eventBus       *eventbus.Bus
	sessionManager *session.Manager
	providerReader *switcher.Reader
	reloadService  *reload.Service
	apiServer      *server.APIServer
	host           *bridgeruntime.ServiceHost
	lifecycle      *bridgeruntime.Lifecycle

	ctx    context.Context
	cancel context.CancelFunc

	errMu  sync.Mutex
	runErr error
}

// New creates a daemon instance from resolved configuration.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config

	bus := eventbus.New()

	sessionManager := session.NewManager()
	sessionManager.UseEventBus(bus)

	providerReader := switcher.NewReader(cfg.SwitcherDB)
	if !providerReader.IsInstalled() {
		log.Printf("[Daemon] cc-switch store not found at %s, provider list will be empty", cfg.SwitcherDB)
	}

	reloadService := reload.NewService(reload.Options{
		SettingsPath:   cfg.Settings,
		SwitcherDBPath: cfg.SwitcherDB,
		Window:         cfg.DebounceWindow,
		Sessions:       sessionManager,
		Bus:            bus,
	})

	apiServer, err := server.NewAPIServer(server.Options{
		ListenAddr:      cfg.ListenAddr,
		DevMode:         cfg.DevMode,
		DevServerOrigin: cfg.DevServerOrigin,
		Sessions:        sessionManager,
		Providers:       providerReader,
		Reloader:        reloadService,
		Bus:             bus,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:            cfg,
		paths:          config.GetBridgePaths(),
		eventBus:       bus,
		sessionManager: sessionManager,
		providerReader: providerReader,
		reloadService:  reloadService,
		apiServer:      apiServer,
		host:           bridgeruntime.NewServiceHost(),
		lifecycle:      bridgeruntime.NewLifecycle(),
	}

	apiServer.Gateway().SetInboundHandler(d.handleSurfaceMessage)

	if err := d.host.Register("reload", func(ctx context.Context) (bridgeruntime.Service, error) {
		return reloadService, nil
	}); err != nil {
		return nil, err
	}
	if err := d.host.Register("notification", func(ctx context.Context) (bridgeruntime.Service, error) {
		return notification.NewService(bus), nil
	}); err != nil {
		return nil, err
	}
	if err := d.host.Register("api", func(ctx context.Context) (bridgeruntime.Service, error) {
		return apiServer, nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}

// Start runs the daemon until Shutdown is called. It blocks.
func (d *Daemon) Start() error {
	if err := bridgeruntime.WritePIDFile(d.paths.Lock, os.Getpid()); err != nil {
		return err
	}
	defer bridgeruntime.RemovePIDFile(d.paths.Lock)

	d.ctx, d.cancel = context.WithCancel(context.Background())

	if err := d.host.Start(d.ctx); err != nil {
		d.cancel()
		return err
	}

	log.Printf("[Daemon] watching settings %s", d.cfg.Settings)
	log.Printf("[Daemon] watching provider store %s", d.cfg.SwitcherDB)

	<-d.lifecycle.Done()

	d.cancel()

	stopCtx, cancel := context.WithTimeout(context.Background(), serviceOpTimeout)
	if err := d.host.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		d.setRunError(err)
	}
	cancel()

	d.sessionManager.CloseAll("daemon_shutdown")
	d.eventBus.Shutdown()

	return d.getRunError()
}

// Shutdown signals the daemon to stop.
func (d *Daemon) Shutdown() error {
	d.lifecycle.Shutdown()
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// APIServer returns the API server.
func (d *Daemon) APIServer() *server.APIServer {
	return d.apiServer
}

// SessionManager returns the session manager.
func (d *Daemon) SessionManager() *session.Manager {
	return d.sessionManager
}

// handleSurfaceMessage reacts to messages from connected presentation
// surfaces. Unknown types are logged and dropped.
func (d *Daemon) handleSurfaceMessage(msg server.InboundMessage) {
	switch msg.Type {
	case "ready", "refresh_providers":
		d.postProviders()

	case "open_switcher":
		if err := d.providerReader.Open(context.Background()); err != nil {
			eventbus.Publish(context.Background(), d.eventBus, eventbus.UI.Notice, eventbus.SourceDaemon, eventbus.NoticeEvent{
				Level:   "warning",
				Message: err.Error(),
			})
		}

	case "reload":
		d.reloadService.Reload()

	default:
		log.Printf("[Daemon] unhandled surface message type %q", msg.Type)
	}
}

// postProviders pushes the current provider snapshot to connected
// surfaces.
func (d *Daemon) postProviders() {
	providers := d.providerReader.Providers(context.Background())
	payload := map[string]any{
		"kind":      "providers",
		"providers": providers,
	}
	if err := d.apiServer.Gateway().Post(payload); err != nil && !errors.Is(err, server.ErrNoSurface) {
		log.Printf("[Daemon] post providers: %v", err)
	}
}

func (d *Daemon) setRunError(err error) {
	if err == nil {
		return
	}
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.runErr == nil {
		d.runErr = err
	}
}

func (d *Daemon) getRunError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.runErr
}

// IsRunning checks if a daemon instance already holds the lock file.
// A stale lock left by a dead process is removed.
func IsRunning() bool {
	paths := config.GetBridgePaths()

	data, err := os.ReadFile(paths.Lock)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(paths.Lock)
		return false
	}

	if !procutil.IsProcessAlive(pid) {
		os.Remove(paths.Lock)
		return false
	}

	return true
}
