package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Service логическое имя backend сервиса аналитики
type Service string

const (
	ServiceRCA  Service = "rca"
	ServiceUEBA Service = "ueba"
)

// ErrNotResolved endpoints еще не получены
var ErrNotResolved = errors.New("analytics endpoints are not resolved")

// Snapshot holds currently resolved analytics endpoints.
type Snapshot struct {
	RCAURL     *url.URL
	UEBAURL    *url.URL
	ResolvedAt time.Time
}

// URL returns the base URL for a service.
func (s Snapshot) URL(service Service) (*url.URL, bool) {
	switch service {
	case ServiceRCA:
		return s.RCAURL, s.RCAURL != nil
	case ServiceUEBA:
		return s.UEBAURL, s.UEBAURL != nil
	default:
		return nil, false
	}
}

// Resolver discovers current analytics endpoints.
type Resolver interface {
	Resolve(ctx context.Context) (Snapshot, error)
}

// Equal true, если оба снимка указывают на те же адреса
func (s Snapshot) Equal(other Snapshot) bool {
	return sameURL(s.RCAURL, other.RCAURL) && sameURL(s.UEBAURL, other.UEBAURL)
}

func sameURL(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// state публикуется целиком, чтобы Ready, LastError и Snapshot были согласованы
type state struct {
	snapshot *Snapshot
	ready    bool
	err      error
}

// Manager хранит последний удачный снимок; при ошибке он остается в работе,
// но Ready становится false до следующего удачного обновления.
type Manager struct {
	resolver        Resolver
	refreshInterval time.Duration
	current         atomic.Pointer[state]
	observer        func(error)
}

func NewManager(resolver Resolver, refreshInterval time.Duration) *Manager {
	m := &Manager{resolver: resolver, refreshInterval: refreshInterval}
	m.current.Store(&state{})
	return m
}

// SetObserver вызывается после каждой попытки обновления (метрики).
// Задается до Start.
func (m *Manager) SetObserver(fn func(error)) {
	m.observer = fn
}

func (m *Manager) Refresh(ctx context.Context) error {
	snapshot, err := m.resolver.Resolve(ctx)
	if m.observer != nil {
		m.observer(err)
	}

	prev := m.current.Load()
	if err != nil {
		m.current.Store(&state{snapshot: prev.snapshot, err: err})
		return err
	}

	snapshot.ResolvedAt = time.Now().UTC()
	m.current.Store(&state{snapshot: &snapshot, ready: true})
	return nil
}

// Start обновляет снимок с периодом refreshInterval; 0 отключает обновление
func (m *Manager) Start(ctx context.Context, log *logger.Logger) {
	if m.refreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before, _ := m.Snapshot()

			refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := m.Refresh(refreshCtx)
			cancel()
			if err != nil {
				log.Error("Discovery refresh failed", err)
				continue
			}

			after, _ := m.Snapshot()
			if !after.Equal(before) {
				log.Info("Analytics endpoints changed", "rca", fmt.Sprint(after.RCAURL), "ueba", fmt.Sprint(after.UEBAURL))
			}
		}
	}
}

// Snapshot второй результат совпадает с Ready
func (m *Manager) Snapshot() (Snapshot, bool) {
	st := m.current.Load()
	if st.snapshot == nil {
		return Snapshot{}, false
	}
	return *st.snapshot, st.ready
}

// BaseURL returns the last known base URL of the service.
func (m *Manager) BaseURL(service Service) (*url.URL, error) {
	st := m.current.Load()
	if st.snapshot == nil {
		return nil, ErrNotResolved
	}
	u, ok := st.snapshot.URL(service)
	if !ok {
		return nil, fmt.Errorf("no endpoint for service %q: %w", service, ErrNotResolved)
	}
	return u, nil
}

func (m *Manager) Ready() bool {
	return m.current.Load().ready
}

func (m *Manager) LastError() error {
	return m.current.Load().err
}
