package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/domain"
)

func snapshotJSON(asOf time.Time) string {
	return `{
		"as_of": "` + asOf.Format(time.RFC3339Nano) + `",
		"usd_price": {"USDT": 1, "BTC": 50000},
		"irr_per_usd": 1000,
		"high_volatility": false
	}`
}

func TestViewEmptyCacheFails(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, zerolog.Nop())

	_, err := client.View()
	require.Error(t, err)
}

func TestRefreshPopulatesCache(t *testing.T) {
	asOf := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices", r.URL.Path)
		w.Write([]byte(snapshotJSON(asOf)))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	view, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50000, view.USDPrice["BTC"], 1e-9)
	assert.InDelta(t, 1000, view.IrrPerUSD, 1e-9)

	cached, err := client.View()
	require.NoError(t, err)
	assert.True(t, view.AsOf.Equal(cached.AsOf))
}

func TestRefreshRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"zero fx rate":   `{"as_of":"2026-06-15T10:00:00Z","usd_price":{"BTC":50000},"irr_per_usd":0}`,
		"empty prices":   `{"as_of":"2026-06-15T10:00:00Z","usd_price":{},"irr_per_usd":1000}`,
		"negative price": `{"as_of":"2026-06-15T10:00:00Z","usd_price":{"BTC":-1},"irr_per_usd":1000}`,
		"not json":       `nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
			_, err := client.Refresh(context.Background())
			require.Error(t, err)
		})
	}
}

func TestRefreshNon200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := client.Refresh(context.Background())
	require.Error(t, err)
}

func TestViewStaleCacheFails(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", StaleThreshold: time.Minute}, zerolog.Nop())
	client.Seed(domain.MarketView{
		AsOf:      time.Now().Add(-2 * time.Minute),
		USDPrice:  map[string]float64{"BTC": 50000},
		IrrPerUSD: 1000,
	})

	_, err := client.View()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestStoreDropsOutOfOrderViews(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, zerolog.Nop())
	now := time.Now()

	client.Seed(domain.MarketView{AsOf: now, USDPrice: map[string]float64{"BTC": 51000}, IrrPerUSD: 1000})
	client.Seed(domain.MarketView{AsOf: now.Add(-time.Minute), USDPrice: map[string]float64{"BTC": 50000}, IrrPerUSD: 1000})

	view, err := client.View()
	require.NoError(t, err)
	assert.InDelta(t, 51000, view.USDPrice["BTC"], 1e-9)
}

func TestOnUpdateCallback(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, zerolog.Nop())

	var got []domain.MarketView
	client.OnUpdate(func(v domain.MarketView) { got = append(got, v) })

	client.Seed(domain.MarketView{AsOf: time.Now(), USDPrice: map[string]float64{"BTC": 50000}, IrrPerUSD: 1000})
	require.Len(t, got, 1)
}

func TestStreamHandleMessage(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, zerolog.Nop())
	stream := NewStream(client, "ws://unused")

	asOf := time.Now().UTC()
	frame := `["prices", ` + snapshotJSON(asOf) + `]`
	require.NoError(t, stream.handleMessage([]byte(frame)))

	view, err := client.View()
	require.NoError(t, err)
	assert.InDelta(t, 50000, view.USDPrice["BTC"], 1e-9)

	// Non-prices channels are ignored without error.
	require.NoError(t, stream.handleMessage([]byte(`["status", {}]`)))

	require.Error(t, stream.handleMessage([]byte(`["prices"]`)))
	require.Error(t, stream.handleMessage([]byte(`nope`)))
}
