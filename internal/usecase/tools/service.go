package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/observability/metrics"
	"flux-tools/internal/observability/tracing"
)

// Registry holds the set of registered providers and routes invocation
// requests to them. It is constructed once at process startup and injected
// into whatever needs it; there is no package-level instance.
//
// The provider map is the only shared mutable state in the host. Readers
// never observe a half-inserted provider, and registrations of different
// names never lose updates.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. logger may be nil to use the
// default logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// RegisterProvider adds p to the registry. Registration is idempotent by
// name: a second registration under the same name replaces the first without
// changing its position in registration order.
func (r *Registry) RegisterProvider(p Provider) {
	name := p.Name()

	r.mu.Lock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	count := len(r.providers)
	r.mu.Unlock()

	metrics.SetProvidersRegistered(count)
	r.logger.Info("provider registered",
		slog.String("provider", name),
		slog.Int("total", count))
}

// ListProviders returns provider names in registration order.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// snapshot returns the providers in registration order without holding the
// lock during any provider call.
func (r *Registry) snapshot() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// lookup returns the provider registered under name.
func (r *Registry) lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ListAllTools concurrently lists every registered provider's tools, tagging
// each tool with its owning provider's name. A provider whose listing fails
// is logged and contributes nothing; one broken provider must never blind
// callers to the tools of healthy providers. Output preserves registration
// order.
func (r *Registry) ListAllTools(ctx context.Context) []entity.ProviderTool {
	providers := r.snapshot()
	listings := r.fanOutListings(ctx, providers)

	var out []entity.ProviderTool
	for i, listing := range listings {
		name := providers[i].Name()
		for _, tool := range listing {
			out = append(out, entity.ProviderTool{Tool: tool, Provider: name})
		}
	}
	return out
}

// ListProviderTools lists a single provider's tools, tagged with its name.
// It fails with PROVIDER_NOT_FOUND for an unregistered name and wraps the
// provider's own listing failure as a PROVIDER_ERROR.
func (r *Registry) ListProviderTools(ctx context.Context, name string) ([]entity.ProviderTool, error) {
	p, ok := r.lookup(name)
	if !ok {
		return nil, entity.NewNotFoundError(entity.CodeProviderNotFound,
			fmt.Sprintf("provider %q is not registered", name))
	}

	listing, err := p.ListTools(ctx)
	if err != nil {
		return nil, entity.NewProviderError(
			fmt.Sprintf("provider %q failed to list tools", name), err)
	}

	out := make([]entity.ProviderTool, 0, len(listing))
	for _, tool := range listing {
		out = append(out, entity.ProviderTool{Tool: tool, Provider: name})
	}
	return out, nil
}

// CallTool invokes toolName on the named provider. It fails with
// PROVIDER_NOT_FOUND before touching the network if providerName is
// unregistered.
func (r *Registry) CallTool(ctx context.Context, toolName, providerName string, params map[string]any) (map[string]any, error) {
	p, ok := r.lookup(providerName)
	if !ok {
		return nil, entity.NewNotFoundError(entity.CodeProviderNotFound,
			fmt.Sprintf("provider %q is not registered", providerName))
	}
	return r.invoke(ctx, p, toolName, params)
}

// CallToolAcrossProviders locates the providers exposing toolName via
// concurrent discovery, then invokes the first match in registration order.
// Discovery is read-only and tolerant of individual listing failures; the
// invocation itself happens at most once, even when several providers match.
func (r *Registry) CallToolAcrossProviders(ctx context.Context, toolName string, params map[string]any) (map[string]any, error) {
	providers := r.snapshot()
	listings := r.fanOutListings(ctx, providers)

	for i, listing := range listings {
		for _, tool := range listing {
			if tool.Name == toolName {
				return r.invoke(ctx, providers[i], toolName, params)
			}
		}
	}

	return nil, entity.NewNotFoundError(entity.CodeToolNotFound,
		fmt.Sprintf("no registered provider exposes tool %q", toolName))
}

// fanOutListings queries every provider's tool listing concurrently and joins
// all results, bounding discovery latency to the slowest single provider.
// listings[i] corresponds to providers[i]; a failed listing is logged,
// counted, and left nil.
func (r *Registry) fanOutListings(ctx context.Context, providers []Provider) [][]entity.Tool {
	listings := make([][]entity.Tool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			tools, err := p.ListTools(gctx)
			if err != nil {
				metrics.RecordProviderListingFailure(p.Name())
				r.logger.Warn("provider tool listing failed, skipping",
					slog.String("provider", p.Name()),
					slog.Any("error", err))
				return nil // partial-failure tolerance
			}
			listings[i] = tools
			return nil
		})
	}
	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()

	return listings
}

// invoke delegates to the provider's CallTool, recording metrics and a span,
// and normalizes errors for the caller: client-fault taxonomy errors
// (validation, not-found) pass through untouched so the transport layer can
// map them to the right status family, while everything else is wrapped as a
// PROVIDER_ERROR carrying tool and provider context.
func (r *Registry) invoke(ctx context.Context, p Provider, toolName string, params map[string]any) (map[string]any, error) {
	providerName := p.Name()
	start := time.Now()

	ctx, span := tracing.StartToolSpan(ctx, providerName, toolName)
	defer span.End()

	result, err := p.CallTool(ctx, toolName, params)
	metrics.RecordToolCallDuration(providerName, toolName, time.Since(start))

	if err != nil {
		switch entity.KindOf(err) {
		case entity.KindValidation, entity.KindNotFound:
			// Caller-fault errors keep their kind.
		default:
			err = entity.NewProviderError(
				fmt.Sprintf("tool %q on provider %q failed", toolName, providerName), err)
		}
		span.RecordError(err)
		metrics.RecordToolCall(providerName, toolName, entity.CodeOf(err))
		r.logger.Warn("tool invocation failed",
			slog.String("provider", providerName),
			slog.String("tool", toolName),
			slog.String("code", entity.CodeOf(err)),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	metrics.RecordToolCall(providerName, toolName, "success")
	r.logger.Info("tool invocation succeeded",
		slog.String("provider", providerName),
		slog.String("tool", toolName),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}
