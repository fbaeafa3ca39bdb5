package listener

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"backpropd/internal/logging"
)

// ManagerConfig configures the dual-listener manager.
type ManagerConfig struct {
	PlainAddr string
	TLSAddr   string
	CertFile  string
	KeyFile   string
	// Handler is the one pipeline instance shared by both transports.
	Handler http.Handler
	Logger  *logging.Logger
}

// Manager owns the plain and encrypted listeners. The plain listener is
// required: its bind failure is fatal to Start. The encrypted listener is
// best-effort: missing or malformed TLS material disables it with a
// warning and the plain listener serves alone.
type Manager struct {
	log    *logging.Logger
	plain  *HTTPListener
	secure *HTTPListener
	cfg    ManagerConfig
}

// NewManager creates a manager; nothing is bound until Start.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{log: cfg.Logger, cfg: cfg}
}

// Start brings up the listeners. The returned error, always from the plain
// listener, is fatal: the caller should log it and exit non-zero.
func (m *Manager) Start(ctx context.Context) error {
	m.plain = NewHTTPListener(HTTPListenerConfig{
		Name:    "http",
		Addr:    m.cfg.PlainAddr,
		Handler: m.cfg.Handler,
		Logger:  m.log,
	})
	if err := m.plain.Start(ctx); err != nil {
		return fmt.Errorf("plain listener: %w", err)
	}
	m.logInfo("plain listener started", map[string]interface{}{"addr": m.plain.Addr()})

	if m.cfg.TLSAddr == "" || m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
		m.logWarn("encrypted listener not configured", nil)
		return nil
	}

	tlsConfig, err := LoadTLSConfig(m.cfg.CertFile, m.cfg.KeyFile)
	if err != nil {
		// Absence of TLS material is a valid state, not a startup failure.
		m.logWarn("TLS material unavailable, encrypted listener disabled", map[string]interface{}{
			"cert_file": m.cfg.CertFile,
			"key_file":  m.cfg.KeyFile,
			"error":     err.Error(),
		})
		return nil
	}

	secure := NewHTTPListener(HTTPListenerConfig{
		Name:      "https",
		Addr:      m.cfg.TLSAddr,
		TLSConfig: tlsConfig,
		Handler:   m.cfg.Handler,
		Logger:    m.log,
	})
	if err := secure.Start(ctx); err != nil {
		m.logWarn("encrypted listener failed to start", map[string]interface{}{
			"addr":  m.cfg.TLSAddr,
			"error": err.Error(),
		})
		return nil
	}
	m.secure = secure
	m.logInfo("encrypted listener started", map[string]interface{}{"addr": secure.Addr()})

	return nil
}

// Shutdown drives every active listener through Closing to Closed. Each
// listener is awaited independently with its own error channel; one
// transport's closure failure never blocks the other's.
func (m *Manager) Shutdown(ctx context.Context) []error {
	type result struct {
		name string
		err  error
	}

	listeners := make(map[string]*HTTPListener)
	if m.plain != nil {
		listeners["http"] = m.plain
	}
	if m.secure != nil {
		listeners["https"] = m.secure
	}

	var wg sync.WaitGroup
	results := make(chan result, len(listeners))
	for name, l := range listeners {
		wg.Add(1)
		go func(name string, l *HTTPListener) {
			defer wg.Done()
			results <- result{name: name, err: l.Stop(ctx)}
		}(name, l)
	}
	wg.Wait()
	close(results)

	var errs []error
	for res := range results {
		if res.err != nil {
			m.logWarn("listener shutdown error", map[string]interface{}{
				"listener": res.name,
				"error":    res.err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s listener shutdown: %w", res.name, res.err))
		} else {
			m.logInfo("listener closed", map[string]interface{}{"listener": res.name})
		}
	}
	return errs
}

// Plain returns the plain listener, nil before Start.
func (m *Manager) Plain() *HTTPListener { return m.plain }

// Secure returns the encrypted listener, nil when disabled.
func (m *Manager) Secure() *HTTPListener { return m.secure }

// SecureActive reports whether the encrypted listener is serving.
func (m *Manager) SecureActive() bool {
	return m.secure != nil && m.secure.State() == StateListening
}

func (m *Manager) logInfo(msg string, fields map[string]interface{}) {
	if m.log != nil {
		m.log.Info(msg, fields)
	}
}

func (m *Manager) logWarn(msg string, fields map[string]interface{}) {
	if m.log != nil {
		m.log.Warn(msg, fields)
	}
}
