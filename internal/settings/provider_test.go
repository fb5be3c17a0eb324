package settings

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() Snapshot {
	return Snapshot{
		VATRatePercent:        decimal.NewFromInt(22),
		ShippingCost:          decimal.NewFromInt(10),
		FreeShippingThreshold: decimal.NewFromInt(100),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestProviderDefaults(t *testing.T) {
	p := NewProvider("http://settings.invalid/settings/", testDefaults(), WithLogger(quietLogger()))

	snap := p.Snapshot()
	assert.True(t, snap.VATRatePercent.Equal(decimal.NewFromInt(22)))
	assert.True(t, snap.ShippingCost.Equal(decimal.NewFromInt(10)))
	assert.True(t, snap.FreeShippingThreshold.Equal(decimal.NewFromInt(100)))
}

func TestProviderRefresh(t *testing.T) {
	t.Run("applies fetched settings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"vat_rate":10,"shipping_cost":5.5,"free_shipping_threshold":50}`))
		}))
		defer srv.Close()

		p := NewProvider(srv.URL, testDefaults(), WithLogger(quietLogger()))
		p.Refresh(context.Background())

		snap := p.Snapshot()
		assert.True(t, snap.VATRatePercent.Equal(decimal.NewFromInt(10)))
		assert.True(t, snap.ShippingCost.Equal(decimal.RequireFromString("5.5")))
		assert.True(t, snap.FreeShippingThreshold.Equal(decimal.NewFromInt(50)))
	})

	t.Run("partial payload keeps remaining defaults", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"shipping_cost":7}`))
		}))
		defer srv.Close()

		p := NewProvider(srv.URL, testDefaults(), WithLogger(quietLogger()))
		p.Refresh(context.Background())

		snap := p.Snapshot()
		assert.True(t, snap.VATRatePercent.Equal(decimal.NewFromInt(22)), "vat untouched")
		assert.True(t, snap.ShippingCost.Equal(decimal.NewFromInt(7)))
		assert.True(t, snap.FreeShippingThreshold.Equal(decimal.NewFromInt(100)), "threshold untouched")
	})

	t.Run("unreachable endpoint keeps current snapshot", func(t *testing.T) {
		p := NewProvider("http://127.0.0.1:1/settings/", testDefaults(), WithLogger(quietLogger()))
		p.Refresh(context.Background())

		snap := p.Snapshot()
		assert.True(t, snap.VATRatePercent.Equal(decimal.NewFromInt(22)))
	})

	t.Run("non-200 keeps current snapshot", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := NewProvider(srv.URL, testDefaults(), WithLogger(quietLogger()))
		p.Refresh(context.Background())

		assert.True(t, p.Snapshot().ShippingCost.Equal(decimal.NewFromInt(10)))
	})

	t.Run("malformed body keeps current snapshot", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		p := NewProvider(srv.URL, testDefaults(), WithLogger(quietLogger()))
		p.Refresh(context.Background())

		assert.True(t, p.Snapshot().ShippingCost.Equal(decimal.NewFromInt(10)))
	})
}

func TestProviderConcurrentRefresh(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
		}
		<-release
		_, _ = w.Write([]byte(`{"vat_rate":4}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, testDefaults(), WithLogger(quietLogger()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Refresh(context.Background())
	}()

	// Wait for the first fetch to be in flight, then pile on more refreshers.
	<-entered
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Refresh(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls, "concurrent refreshes should collapse into one fetch")
	assert.True(t, p.Snapshot().VATRatePercent.Equal(decimal.NewFromInt(4)))
}
