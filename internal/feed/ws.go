// Package feed provides an optional websocket tick source for deployments
// without a separate socket bridge process: it subscribes to exchange
// tickers and republishes them onto the price queue the engine consumes.
package feed

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

const (
	reconnectDelay = time.Second
	pingInterval   = 20 * time.Second
)

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type tickerFrame struct {
	Arg  subscribeArg `json:"arg"`
	Data []struct {
		Last string `json:"last"`
	} `json:"data"`
}

// Source maintains a subscribed websocket connection and republishes every
// ticker as a price-queue entry. It reconnects forever until the context is
// cancelled.
type Source struct {
	url     string
	symbols []string
	store   store.Store
	dialer  *websocket.Dialer
}

func NewSource(url string, symbols []string, st store.Store) *Source {
	return &Source{url: url, symbols: symbols, store: st, dialer: websocket.DefaultDialer}
}

func (s *Source) Name() string { return "ws-feed" }

func (s *Source) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		<-ctx.Done()
		return nil
	}
	args := make([]subscribeArg, len(s.symbols))
	for i, sym := range s.symbols {
		args[i] = subscribeArg{Channel: "tickers", InstID: sym}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.connectAndRead(ctx, args); err != nil {
			logger.Error("ws feed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Source) connectAndRead(ctx context.Context, args []subscribeArg) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"op": "subscribe", "args": args}); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(ctx, conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.publish(ctx, msg)
	}
}

func (s *Source) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (s *Source) publish(ctx context.Context, msg []byte) {
	var frame tickerFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return
	}
	if frame.Arg.Channel != "tickers" || len(frame.Data) == 0 {
		return
	}
	price, err := strconv.ParseFloat(frame.Data[0].Last, 64)
	if err != nil || price <= 0 {
		return
	}
	enc, err := models.Tick{Symbol: frame.Arg.InstID, Price: price}.Encode()
	if err != nil {
		return
	}
	if err := s.store.RPush(ctx, store.KeyPriceQueue, enc); err != nil {
		logger.Error("publish tick %s: %v", frame.Arg.InstID, err)
	}
}
