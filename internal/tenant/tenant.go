// Package tenant implements the tenant context registry (C1): it resolves
// opaque tenant ids into a namespace and consent policy, and validates
// operations against that policy before a retrieval or ingestion proceeds.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
)

// Consent names the operations a tenant has agreed to.
type Consent struct {
	AllowedOps []string
	ExpiresAt  *time.Time
	Version    int
}

func (c Consent) allows(op string) bool {
	for _, o := range c.AllowedOps {
		if o == op {
			return true
		}
	}
	return false
}

// Tenant is the registry's record for one tenant.
type Tenant struct {
	TenantID    string
	DisplayName string
	BusinessUnit string
	Department  string // optional; "" means unscoped
	Industry    string
	PriorityTier string
	Consent     Consent
	Active      bool
}

// Namespace is the triple that isolates one tenant's data from another's.
type Namespace struct {
	TenantID     string
	BusinessUnit string
	Department   string
}

func (n Namespace) String() string {
	dept := n.Department
	if dept == "" {
		dept = "*"
	}
	bu := n.BusinessUnit
	if bu == "" {
		bu = "*"
	}
	return fmt.Sprintf("%s:%s:%s", n.TenantID, bu, dept)
}

// Store is the durable backend behind the registry's read-through cache.
type Store interface {
	Get(ctx context.Context, tenantID string) (Tenant, bool, error)
	Put(ctx context.Context, t Tenant) error
	List(ctx context.Context) ([]Tenant, error)
}

type cacheEntry struct {
	tenant    Tenant
	cachedAt  time.Time
}

// Registry is the read-through, TTL-cached tenant context registry.
type Registry struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewRegistry constructs a Registry backed by store with the given cache TTL.
// A zero ttl defaults to one hour, per the lookup cache default.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{store: store, ttl: ttl, cache: make(map[string]cacheEntry)}
}

// Lookup resolves tenantID, optionally narrowed by business unit/department,
// through the read-through cache.
func (r *Registry) Lookup(ctx context.Context, tenantID, businessUnit, department string) (Tenant, error) {
	if tenantID == "" {
		return Tenant{}, apperr.New(apperr.InvalidArgument, "tenant_lookup", "tenant_id is required")
	}

	r.mu.Lock()
	if e, ok := r.cache[tenantID]; ok && time.Since(e.cachedAt) < r.ttl {
		r.mu.Unlock()
		return matchNamespace(e.tenant, businessUnit, department)
	}
	r.mu.Unlock()

	t, ok, err := r.store.Get(ctx, tenantID)
	if err != nil {
		// A brief durable-store outage does not break a cache that is
		// still warm: an unexpired hit above has already returned.
		return Tenant{}, apperr.Wrap(apperr.BackendFailed, "tenant_lookup", "tenant registry is unavailable", err)
	}
	if !ok {
		return Tenant{}, apperr.New(apperr.NotFound, "tenant_lookup", "tenant not found")
	}

	r.mu.Lock()
	r.cache[tenantID] = cacheEntry{tenant: t, cachedAt: time.Now()}
	r.mu.Unlock()

	return matchNamespace(t, businessUnit, department)
}

func matchNamespace(t Tenant, businessUnit, department string) (Tenant, error) {
	if businessUnit != "" && t.BusinessUnit != businessUnit {
		return Tenant{}, apperr.New(apperr.NotFound, "tenant_lookup", "tenant not found")
	}
	if department != "" && t.Department != department {
		return Tenant{}, apperr.New(apperr.NotFound, "tenant_lookup", "tenant not found")
	}
	return t, nil
}

// ValidateNamespace reports whether ns names a tenant currently active in
// the registry under that namespace.
func (r *Registry) ValidateNamespace(ctx context.Context, ns Namespace) bool {
	t, err := r.Lookup(ctx, ns.TenantID, ns.BusinessUnit, ns.Department)
	return err == nil && t.Active
}

// ValidateConsent checks whether tenantID's consent policy permits op "now".
func (r *Registry) ValidateConsent(ctx context.Context, tenantID, op string) error {
	t, err := r.Lookup(ctx, tenantID, "", "")
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return apperr.New(apperr.Denied, "validate_consent", "Esta solicitud no se puede completar para la cuenta indicada. Por favor, contacte al administrador del sistema.")
		}
		return err
	}
	if !t.Active {
		return apperr.New(apperr.Denied, "validate_consent", fmt.Sprintf("La cuenta de '%s' no está activa actualmente. Por favor, contacte al administrador del sistema.", t.DisplayName))
	}
	if t.Consent.ExpiresAt != nil && time.Now().After(*t.Consent.ExpiresAt) {
		return apperr.New(apperr.Denied, "validate_consent", fmt.Sprintf("El consentimiento de '%s' expiró el %s. Por favor, renueve el consentimiento antes de continuar.", t.DisplayName, t.Consent.ExpiresAt.Format("2006-01-02")))
	}
	if !t.Consent.allows(op) {
		return apperr.New(apperr.Denied, "validate_consent", fmt.Sprintf("Operación '%s' no autorizada para '%s'. Por favor, contacte al administrador del sistema para actualizar el consentimiento.", op, t.DisplayName))
	}
	return nil
}

// ListActive returns every tenant currently marked active.
func (r *Registry) ListActive(ctx context.Context) ([]Tenant, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendFailed, "list_active", "tenant registry is unavailable", err)
	}
	out := make([]Tenant, 0, len(all))
	for _, t := range all {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

// Register upserts t into the durable store and invalidates its cache entry.
func (r *Registry) Register(ctx context.Context, t Tenant) error {
	if err := r.store.Put(ctx, t); err != nil {
		return apperr.Wrap(apperr.BackendFailed, "register", "failed to persist tenant", err)
	}
	r.mu.Lock()
	delete(r.cache, t.TenantID)
	r.mu.Unlock()
	return nil
}
