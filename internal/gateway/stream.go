package gateway

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PriceStream keeps a cache of last traded prices fed by the Binance trade
// websocket. Monitors read the cache instead of hitting REST on every poll.
type PriceStream struct {
	url string
	log zerolog.Logger

	mu   sync.RWMutex
	last map[string]float64
}

// NewPriceStream builds a stream for the given pairs.
func NewPriceStream(pairs []string, log zerolog.Logger) *PriceStream {
	streams := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p = strings.TrimSpace(p); p != "" {
			streams = append(streams, strings.ToLower(p)+"@trade")
		}
	}
	return &PriceStream{
		url:  fmt.Sprintf("wss://fstream.binance.com/stream?streams=%s", strings.Join(streams, "/")),
		log:  log,
		last: make(map[string]float64),
	}
}

// LastPrice returns the cached price for the pair and whether one exists.
func (s *PriceStream) LastPrice(pair string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	px, ok := s.last[pair]
	return px, ok
}

type streamEnvelope struct {
	Data struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

// Run consumes the stream until ctx is canceled, reconnecting with capped
// exponential backoff on failure.
func (s *PriceStream) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		healthy, err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if healthy {
			// The connection delivered data before dropping; start the
			// backoff ladder over instead of resuming at the cap.
			backoff = time.Second
		}
		s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("price stream disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

// consume reads one connection to exhaustion. healthy reports whether at
// least one message arrived before the failure.
func (s *PriceStream) consume(ctx context.Context) (healthy bool, _ error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var env streamEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return healthy, fmt.Errorf("read: %w", err)
		}
		healthy = true
		px, err := strconv.ParseFloat(env.Data.Price, 64)
		if err != nil || px <= 0 {
			continue
		}
		s.mu.Lock()
		s.last[env.Data.Symbol] = px
		s.mu.Unlock()
	}
}
