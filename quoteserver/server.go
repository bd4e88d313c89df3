// Package quoteserver streams simulated quotes to browsers over WebSocket.
package quoteserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/feed"
	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/market"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Message is the JSON frame sent for every quote.
type Message struct {
	Instrument string    `json:"instrument"`
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Mid        float64   `json:"mid"`
	Spread     float64   `json:"spread"`
	Time       time.Time `json:"time"`
}

func toMessage(q market.Quote) Message {
	meta, _ := market.Lookup(q.Instrument)
	return Message{
		Instrument: q.Instrument,
		Symbol:     meta.Symbol,
		Bid:        q.Bid,
		Ask:        q.Ask,
		Mid:        q.Mid(),
		Spread:     q.Spread(),
		Time:       q.Time,
	}
}

type Server struct {
	feed     *feed.Feed
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func New(f *feed.Feed, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		feed: f,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.WithComponent("quoteserver"),
	}
}

// Handler routes /quotes (WebSocket), /instruments and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quotes", s.serveQuotes)
	mux.HandleFunc("/instruments", s.serveInstruments)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) serveInstruments(w http.ResponseWriter, _ *http.Request) {
	out := make([]market.InstrumentMeta, 0, len(market.Instruments))
	for _, name := range market.Names() {
		out = append(out, market.Instruments[name])
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.WithError(err).Warn("encode instruments")
	}
}

// serveQuotes upgrades the request and streams quotes for the instruments
// named in ?symbols=EUR/USD,BTC/USDT, or for everything the feed tracks.
func (s *Server) serveQuotes(w http.ResponseWriter, r *http.Request) {
	filter := map[string]bool{}
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if err := s.feed.Track(name); err != nil {
				http.Error(w, err.Error()+": "+name, http.StatusBadRequest)
				return
			}
			filter[name] = true
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("upgrade")
		return
	}
	log := s.log.WithField("remote", r.RemoteAddr)
	log.Info("client connected")

	quotes, cancel := s.feed.Subscribe(sendBuffer)
	defer cancel()

	// The feed must never wait on a slow client: drop instead.
	send := make(chan Message, sendBuffer)
	done := make(chan struct{})
	go func() {
		defer close(send)
		for {
			select {
			case q, ok := <-quotes:
				if !ok {
					return
				}
				if len(filter) > 0 && !filter[q.Instrument] {
					continue
				}
				select {
				case send <- toMessage(q):
				default:
				}
			case <-done:
				return
			}
		}
	}()

	go s.readPump(conn, done)
	s.writePump(conn, send, done)
	log.Info("client disconnected")
}

// readPump discards client frames and closes done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, send <-chan Message, done <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		conn.Close()
	}()

	for {
		select {
		case m, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed stopped"))
				return
			}
			if err := conn.WriteJSON(m); err != nil {
				s.log.WithError(err).Debug("write quote")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
