package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flux-tools/internal/domain/entity"
)

// mockProvider is a scriptable Provider for registry tests.
type mockProvider struct {
	name       string
	tools      []entity.Tool
	listErr    error
	callErr    error
	callResult map[string]any
	listCalls  int64
	callCalls  int64
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) ListTools(ctx context.Context) ([]entity.Tool, error) {
	atomic.AddInt64(&m.listCalls, 1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tools, nil
}

func (m *mockProvider) CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	atomic.AddInt64(&m.callCalls, 1)
	if m.callErr != nil {
		return nil, m.callErr
	}
	for _, t := range m.tools {
		if t.Name == name {
			if m.callResult != nil {
				return m.callResult, nil
			}
			return map[string]any{"tool": name, "provider": m.name}, nil
		}
	}
	return nil, entity.NewNotFoundError(entity.CodeToolNotFound,
		fmt.Sprintf("unknown tool %q", name))
}

func toolNamed(name string) entity.Tool {
	return entity.Tool{
		Name:        name,
		Description: name + " tool",
		ParameterShape: map[string]any{
			"type": "object",
		},
	}
}

func TestListProviders_RegistrationOrder(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "alpha"})
	reg.RegisterProvider(&mockProvider{name: "beta"})
	reg.RegisterProvider(&mockProvider{name: "gamma"})

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, reg.ListProviders())
}

func TestRegisterProvider_LastWriteWins(t *testing.T) {
	first := &mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content")}}
	second := &mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content")}}

	reg := NewRegistry(nil)
	reg.RegisterProvider(first)
	reg.RegisterProvider(second)

	assert.Equal(t, []string{"alpha"}, reg.ListProviders(), "replacement must not duplicate the name")

	_, err := reg.CallTool(context.Background(), "extract_content", "alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), atomic.LoadInt64(&first.callCalls), "replaced provider must never be invoked")
	assert.Equal(t, int64(1), atomic.LoadInt64(&second.callCalls))
}

func TestListAllTools_TagsAndOrders(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content"), toolNamed("check_robots")}})
	reg.RegisterProvider(&mockProvider{name: "beta", tools: []entity.Tool{toolNamed("execute_pattern")}})

	all := reg.ListAllTools(context.Background())

	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Provider)
	assert.Equal(t, "extract_content", all[0].Name)
	assert.Equal(t, "alpha", all[1].Provider)
	assert.Equal(t, "beta", all[2].Provider)
	assert.Equal(t, "execute_pattern", all[2].Name)
}

func TestListAllTools_ToleratesFailingProvider(t *testing.T) {
	healthy := &mockProvider{name: "healthy", tools: []entity.Tool{toolNamed("extract_content")}}
	broken := &mockProvider{name: "broken", listErr: errors.New("backend unreachable")}

	reg := NewRegistry(nil)
	reg.RegisterProvider(broken)
	reg.RegisterProvider(healthy)

	all := reg.ListAllTools(context.Background())

	require.Len(t, all, 1, "only the healthy provider's tools are returned")
	assert.Equal(t, "healthy", all[0].Provider)
}

func TestListProviderTools(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content")}})

	listing, err := reg.ListProviderTools(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "alpha", listing[0].Provider)

	_, err = reg.ListProviderTools(context.Background(), "ghost")
	assert.Equal(t, entity.CodeProviderNotFound, entity.CodeOf(err))
}

func TestListProviderTools_WrapsListingFailure(t *testing.T) {
	cause := errors.New("backend unreachable")
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "broken", listErr: cause})

	_, err := reg.ListProviderTools(context.Background(), "broken")

	require.Error(t, err)
	assert.Equal(t, entity.CodeProvider, entity.CodeOf(err))
	assert.ErrorIs(t, err, cause, "original cause must survive the wrap")
}

func TestCallTool_UnknownProviderNeverReachesProvider(t *testing.T) {
	p := &mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content")}}
	reg := NewRegistry(nil)
	reg.RegisterProvider(p)

	_, err := reg.CallTool(context.Background(), "extract_content", "ghost", nil)

	require.Error(t, err)
	assert.Equal(t, entity.CodeProviderNotFound, entity.CodeOf(err))
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
	assert.Equal(t, int64(0), atomic.LoadInt64(&p.callCalls), "no provider call for unknown provider name")
}

func TestCallTool_WrapsForeignErrorAsProviderError(t *testing.T) {
	cause := errors.New("driver exploded")
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "alpha", tools: []entity.Tool{toolNamed("extract_content")}, callErr: cause})

	_, err := reg.CallTool(context.Background(), "extract_content", "alpha", nil)

	require.Error(t, err)
	assert.Equal(t, entity.CodeProvider, entity.CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestCallTool_PreservesClientFaultKinds(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{
		name:    "alpha",
		tools:   []entity.Tool{toolNamed("extract_content")},
		callErr: entity.NewValidationError(entity.CodeInvalidParameters, "url is required", nil),
	})

	_, err := reg.CallTool(context.Background(), "extract_content", "alpha", nil)

	require.Error(t, err)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err),
		"caller-fault errors must keep their kind for transport mapping")
	assert.Equal(t, entity.CodeInvalidParameters, entity.CodeOf(err))
}

func TestCallToolAcrossProviders_InvokesOnlyFirstMatch(t *testing.T) {
	a := &mockProvider{name: "a", tools: []entity.Tool{toolNamed("check_robots")}}
	b := &mockProvider{name: "b", tools: []entity.Tool{toolNamed("extract_content")}}
	c := &mockProvider{name: "c", tools: []entity.Tool{toolNamed("extract_content")}}

	reg := NewRegistry(nil)
	reg.RegisterProvider(a)
	reg.RegisterProvider(b)
	reg.RegisterProvider(c)

	result, err := reg.CallToolAcrossProviders(context.Background(), "extract_content", nil)

	require.NoError(t, err)
	assert.Equal(t, "b", result["provider"], "first matching provider in registration order wins")
	assert.Equal(t, int64(0), atomic.LoadInt64(&a.callCalls))
	assert.Equal(t, int64(1), atomic.LoadInt64(&b.callCalls), "at most one invocation")
	assert.Equal(t, int64(0), atomic.LoadInt64(&c.callCalls))
}

func TestCallToolAcrossProviders_ToolAbsentEverywhere(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterProvider(&mockProvider{name: "a", tools: []entity.Tool{toolNamed("check_robots")}})

	_, err := reg.CallToolAcrossProviders(context.Background(), "summarize", nil)

	require.Error(t, err)
	assert.Equal(t, entity.CodeToolNotFound, entity.CodeOf(err))
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
}

func TestCallToolAcrossProviders_ToleratesDiscoveryFailures(t *testing.T) {
	broken := &mockProvider{name: "broken", listErr: errors.New("backend unreachable")}
	healthy := &mockProvider{name: "healthy", tools: []entity.Tool{toolNamed("extract_content")}}

	reg := NewRegistry(nil)
	reg.RegisterProvider(broken)
	reg.RegisterProvider(healthy)

	result, err := reg.CallToolAcrossProviders(context.Background(), "extract_content", nil)

	require.NoError(t, err)
	assert.Equal(t, "healthy", result["provider"])
}

func TestRegistry_ConcurrentRegistrationAndReads(t *testing.T) {
	reg := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.RegisterProvider(&mockProvider{
				name:  fmt.Sprintf("provider-%d", i),
				tools: []entity.Tool{toolNamed("extract_content")},
			})
		}()
		go func() {
			defer wg.Done()
			_ = reg.ListProviders()
			_ = reg.ListAllTools(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, reg.ListProviders(), 20, "concurrent registrations of distinct names must not lose updates")
}
