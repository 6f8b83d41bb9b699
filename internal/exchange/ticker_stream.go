package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// tickerStream 是一个守护循环，负责维持行情WebSocket的连接和重连，
// 并把收到的最新价写入缓存回调。
type tickerStream struct {
	url      string
	symbol   string
	onPrice  func(symbol string, price float64)
	logger   *zap.SugaredLogger
	stopChan chan struct{}
}

func newTickerStream(url, symbol string, onPrice func(string, float64), logger *zap.SugaredLogger) *tickerStream {
	return &tickerStream{
		url:      url,
		symbol:   symbol,
		onPrice:  onPrice,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (s *tickerStream) stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// run 阻塞运行直到 stop 被调用。连接断开后等待5秒重连。
func (s *tickerStream) run() {
	for {
		select {
		case <-s.stopChan:
			s.logger.Info("ticker stream stopped")
			return
		default:
			conn, err := s.connect()
			if err != nil {
				s.logger.Warnf("ticker stream connect failed: %v, retrying in 5s", err)
			} else {
				s.logger.Infof("ticker stream connected for %s", s.symbol)
				if err := s.readLoop(conn); err != nil {
					s.logger.Warnf("ticker stream read error: %v", err)
				}
				conn.Close()
			}

			select {
			case <-s.stopChan:
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (s *tickerStream) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return nil, err
	}

	sub := map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"symbol": s.symbol, "ch": "ticker"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	return conn, nil
}

// readLoop 为一个已建立的连接处理消息，并实现心跳机制。
func (s *tickerStream) readLoop(conn *websocket.Conn) error {
	const (
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10 // Must be less than pongWait
	)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	pingStop := make(chan struct{})
	defer close(pingStop)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingStop:
				return
			case <-s.stopChan:
				return
			}
		}
	}()

	for {
		select {
		case <-s.stopChan:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read failed: %w", err)
			}

			var msg struct {
				Ch   string `json:"ch"`
				Data struct {
					LastPrice json.Number `json:"la"`
				} `json:"data"`
			}
			if err := json.Unmarshal(message, &msg); err != nil {
				continue
			}
			if msg.Ch != "ticker" {
				continue
			}

			price, err := strconv.ParseFloat(msg.Data.LastPrice.String(), 64)
			if err != nil || price <= 0 {
				continue
			}
			s.onPrice(s.symbol, price)
		}
	}
}
