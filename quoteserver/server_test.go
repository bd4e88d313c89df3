package quoteserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/compound/feed"
	"github.com/rustyeddy/compound/market"
)

func wsURL(t *testing.T, srv *httptest.Server, query string) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/quotes"
	u.RawQuery = query
	return u.String()
}

func TestStreamsTrackedQuotes(t *testing.T) {
	t.Parallel()

	f := feed.New(feed.Config{Seed: 11}, nil)
	srv := httptest.NewServer(New(f, nil).Handler())
	defer srv.Close()

	q := url.Values{"symbols": {"BTC/USDT"}}.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, q), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, f.Track("EUR/USD"))
	assert.Equal(t, []string{"BTC/USDT", "EUR/USD"}, f.Tracked())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			_ = f.Tick(ctx, time.Now())
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "BTC/USDT", m.Instrument)
	assert.Equal(t, "BINANCE:BTCUSDT", m.Symbol)
	assert.InDelta(t, market.Instruments["BTC/USDT"].Spread(), m.Spread, 1e-6)
	assert.InDelta(t, (m.Bid+m.Ask)/2, m.Mid, 1e-9)
}

func TestRejectsUnknownSymbol(t *testing.T) {
	t.Parallel()

	f := feed.New(feed.Config{Seed: 1}, nil)
	srv := httptest.NewServer(New(f, nil).Handler())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "symbols=DOGE/USD"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInstrumentsAndHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(feed.New(feed.Config{Seed: 1}, nil), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/instruments")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []market.InstrumentMeta
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, len(market.Instruments))
	assert.Equal(t, "BTC/USDT", got[0].Name)

	h, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer h.Body.Close()
	assert.Equal(t, http.StatusOK, h.StatusCode)
}
