package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	product "github.com/kestrelcommerce/storefront-backend/internal/products"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
	"github.com/kestrelcommerce/storefront-backend/pkg/metrics"
)

// Service is the cart facade used by transports and collaborators. Every
// call carries the caller's identity; the facade routes it to the session's
// engine and returns the post-operation snapshot.
type Service interface {
	Snapshot(ctx context.Context, ident identity.Identity) (Snapshot, error)
	Add(ctx context.Context, ident identity.Identity, productID uuid.UUID, quantity int) (Snapshot, error)
	Update(ctx context.Context, ident identity.Identity, productID uuid.UUID, quantity int) (Snapshot, error)
	Remove(ctx context.Context, ident identity.Identity, productID uuid.UUID) (Snapshot, error)
	Clear(ctx context.Context, ident identity.Identity) (Snapshot, error)
	Refresh(ctx context.Context, ident identity.Identity) (Snapshot, error)
	Has(ctx context.Context, ident identity.Identity, productID uuid.UUID) (bool, error)
}

const (
	// defaultEngineIdleTTL caps how long an unobserved engine is retained.
	defaultEngineIdleTTL = 24 * time.Hour
	// engineSweepInterval rate-limits the eviction scan.
	engineSweepInterval = time.Minute
)

type engineEntry struct {
	engine   *Engine
	lastSeen time.Time
}

// Manager keys engines by logical cart owner: user id once authenticated,
// guest session id before that. Engines are created lazily on first sight
// of an identity and re-observed on every call. Engines not observed within
// idleTTL are evicted; dropping one loses no cart state, since the stores
// and the redis merge flag are the durable record.
type Manager struct {
	local    LocalStore
	remote   RemoteStore
	enricher product.Service
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	idleTTL  time.Duration

	now func() time.Time

	mu        sync.Mutex
	engines   map[string]*engineEntry
	lastSweep time.Time
}

// NewManager wires the engine registry. idleTTL bounds how long an idle
// session keeps its engine in memory; zero or negative selects the default.
func NewManager(local LocalStore, remote RemoteStore, enricher product.Service, logg *logger.Logger, cartMetrics *metrics.CartMetrics, idleTTL time.Duration) (*Manager, error) {
	if local == nil {
		return nil, fmt.Errorf("local cart store required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cart store required")
	}
	if enricher == nil {
		return nil, fmt.Errorf("enrichment service required")
	}
	if idleTTL <= 0 {
		idleTTL = defaultEngineIdleTTL
	}
	return &Manager{
		local:    local,
		remote:   remote,
		enricher: enricher,
		logg:     logg,
		metrics:  cartMetrics,
		idleTTL:  idleTTL,
		now:      time.Now,
		engines:  map[string]*engineEntry{},
	}, nil
}

// Engine returns the engine for the identity, observing the identity on it
// before handing it back.
func (m *Manager) Engine(ctx context.Context, ident identity.Identity) (*Engine, error) {
	key := ident.Key()
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a session or user id is required")
	}

	at := m.now()
	m.mu.Lock()
	m.sweepLocked(at)
	entry, ok := m.engines[key]
	if !ok {
		eng, err := NewEngine(m.local, m.remote, m.enricher, m.logg, m.metrics)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		entry = &engineEntry{engine: eng}
		m.engines[key] = entry
	}
	entry.lastSeen = at
	eng := entry.engine
	m.mu.Unlock()

	if err := eng.Observe(ctx, ident); err != nil {
		return nil, err
	}
	return eng, nil
}

// sweepLocked drops engines idle past the TTL. Caller holds m.mu.
func (m *Manager) sweepLocked(at time.Time) {
	if at.Sub(m.lastSweep) < engineSweepInterval {
		return
	}
	m.lastSweep = at
	for key, entry := range m.engines {
		if at.Sub(entry.lastSeen) > m.idleTTL {
			delete(m.engines, key)
		}
	}
}

type service struct {
	manager *Manager
}

// NewService builds the cart facade over an engine manager.
func NewService(manager *Manager) (Service, error) {
	if manager == nil {
		return nil, fmt.Errorf("engine manager required")
	}
	return &service{manager: manager}, nil
}

func (s *service) Snapshot(ctx context.Context, ident identity.Identity) (Snapshot, error) {
	eng, err := s.manager.Engine(ctx, ident)
	if err != nil {
		return Snapshot{}, err
	}
	return eng.Snapshot(), nil
}

func (s *service) Add(ctx context.Context, ident identity.Identity, productID uuid.UUID, quantity int) (Snapshot, error) {
	return s.run(ctx, ident, func(ctx context.Context, eng *Engine) error {
		return eng.Add(ctx, productID, quantity)
	})
}

func (s *service) Update(ctx context.Context, ident identity.Identity, productID uuid.UUID, quantity int) (Snapshot, error) {
	return s.run(ctx, ident, func(ctx context.Context, eng *Engine) error {
		return eng.Update(ctx, productID, quantity)
	})
}

func (s *service) Remove(ctx context.Context, ident identity.Identity, productID uuid.UUID) (Snapshot, error) {
	return s.run(ctx, ident, func(ctx context.Context, eng *Engine) error {
		return eng.Remove(ctx, productID)
	})
}

func (s *service) Clear(ctx context.Context, ident identity.Identity) (Snapshot, error) {
	return s.run(ctx, ident, func(ctx context.Context, eng *Engine) error {
		return eng.Clear(ctx)
	})
}

func (s *service) Refresh(ctx context.Context, ident identity.Identity) (Snapshot, error) {
	return s.run(ctx, ident, func(ctx context.Context, eng *Engine) error {
		return eng.Refresh(ctx)
	})
}

func (s *service) Has(ctx context.Context, ident identity.Identity, productID uuid.UUID) (bool, error) {
	eng, err := s.manager.Engine(ctx, ident)
	if err != nil {
		return false, err
	}
	return eng.Has(productID), nil
}

func (s *service) run(ctx context.Context, ident identity.Identity, op func(context.Context, *Engine) error) (Snapshot, error) {
	eng, err := s.manager.Engine(ctx, ident)
	if err != nil {
		return Snapshot{}, err
	}
	if err := op(ctx, eng); err != nil {
		return eng.Snapshot(), err
	}
	return eng.Snapshot(), nil
}
