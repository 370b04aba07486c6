// Package wallet manages the connected wallet session used to sign submissions.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

// Permission is a capability granted by the wallet extension.
type Permission string

const (
	PermAccessAddress   Permission = "ACCESS_ADDRESS"
	PermSignTransaction Permission = "SIGN_TRANSACTION"
	PermDispatch        Permission = "DISPATCH"
)

var (
	RequiredPermissions = []Permission{PermAccessAddress, PermSignTransaction}
	OptionalPermissions = []Permission{PermDispatch}
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{43}$`)

// ValidAddress reports whether addr looks like a wallet address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Extension is the wallet provider the session is negotiated with.
type Extension interface {
	Connect(ctx context.Context, perms []Permission) error
	ActiveAddress(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	Signer() transport.Signer
}

// Session is an established wallet connection.
type Session struct {
	Address     string           `json:"address"`
	Permissions []Permission     `json:"permissions"`
	ConnectedAt time.Time        `json:"connectedAt"`
	Signer      transport.Signer `json:"-"`
}

// CanDispatch reports whether the wallet may post messages itself.
func (s *Session) CanDispatch() bool {
	return slices.Contains(s.Permissions, PermDispatch)
}

// Manager owns the single wallet session of this service.
type Manager struct {
	ext           Extension
	addrAttempts  int
	retryInterval time.Duration

	mu         sync.Mutex
	session    *Session
	connecting bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetryInterval sets the pause between address lookups (default 1s).
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) { m.retryInterval = d }
}

// NewManager creates a manager for ext. A nil extension means no wallet is installed.
func NewManager(ext Extension, opts ...Option) *Manager {
	m := &Manager{
		ext:           ext,
		addrAttempts:  3,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect negotiates permissions and reads the active address. While another
// connect is in flight the current session is returned unchanged.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.connecting {
		s := m.session
		m.mu.Unlock()
		if s == nil {
			return nil, model.ErrConnectInProgress
		}
		return s, nil
	}
	m.connecting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	if m.ext == nil {
		return nil, model.ErrWalletUnavailable
	}

	granted, err := m.requestPermissions(ctx)
	if err != nil {
		return nil, err
	}

	addr, err := m.activeAddress(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Address:     addr,
		Permissions: granted,
		ConnectedAt: time.Now(),
		Signer:      m.ext.Signer(),
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	slog.Info("wallet connected", "address", model.FormatAddress(addr), "dispatch", s.CanDispatch())
	return s, nil
}

func (m *Manager) requestPermissions(ctx context.Context) ([]Permission, error) {
	all := slices.Concat(RequiredPermissions, OptionalPermissions)
	err := m.ext.Connect(ctx, all)
	if err == nil {
		return all, nil
	}
	slog.Debug("full permission set refused", "error", err)

	if err := m.ext.Connect(ctx, RequiredPermissions); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPermissionDenied, err)
	}
	return slices.Clone(RequiredPermissions), nil
}

func (m *Manager) activeAddress(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= m.addrAttempts; attempt++ {
		addr, err := m.ext.ActiveAddress(ctx)
		if err == nil && ValidAddress(addr) {
			return addr, nil
		}
		if err == nil {
			err = model.ErrInvalidAddress
		}
		lastErr = err
		slog.Debug("active address lookup failed", "attempt", attempt, "error", err)

		if attempt == m.addrAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.retryInterval):
		}
	}
	return "", fmt.Errorf("fetch wallet address after %d attempts: %w", m.addrAttempts, lastErr)
}

// Restore re-establishes a previously stored session when the extension still
// reports the same active address.
func (m *Manager) Restore(ctx context.Context, stored string) (*Session, error) {
	if !ValidAddress(stored) {
		return nil, model.ErrInvalidAddress
	}
	if m.ext == nil {
		return nil, model.ErrWalletUnavailable
	}
	addr, err := m.activeAddress(ctx)
	if err != nil {
		m.clear()
		return nil, err
	}
	if addr != stored {
		m.clear()
		return nil, model.ErrSessionMismatch
	}

	s := &Session{
		Address:     addr,
		Permissions: slices.Clone(RequiredPermissions),
		ConnectedAt: time.Now(),
		Signer:      m.ext.Signer(),
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	return s, nil
}

// Disconnect drops the session. The local session is cleared even when the
// extension reports an error.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.clear()
	if m.ext == nil {
		return nil
	}
	if err := m.ext.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect wallet: %w", err)
	}
	slog.Info("wallet disconnected")
	return nil
}

// Current returns the active session.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, model.ErrWalletNotConnected
	}
	return m.session, nil
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
}
