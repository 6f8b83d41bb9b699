package exchange

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bitunix-trend-bot-go/internal/models"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://fapi.bitunix.com"

// BitunixExchange 实现了 Exchange 接口，通过REST API与Bitunix合约交易所交互。
// 行情价格优先来自WebSocket推送的缓存，REST作为回退。
type BitunixExchange struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	wsURL      string
	httpClient *http.Client
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	lastPrice   map[string]cachedPrice
	streams     map[string]*tickerStream
	streamStale time.Duration
}

type cachedPrice struct {
	price float64
	at    time.Time
}

// NewBitunixExchange 创建一个新的 BitunixExchange 实例。
// baseURL 与 wsURL 为空时使用生产环境地址。
func NewBitunixExchange(apiKey, apiSecret, baseURL, wsURL string, logger *zap.SugaredLogger) *BitunixExchange {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BitunixExchange{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		baseURL:     baseURL,
		wsURL:       wsURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		lastPrice:   make(map[string]cachedPrice),
		streams:     make(map[string]*tickerStream),
		streamStale: 10 * time.Second,
	}
}

// apiResponse 是Bitunix API的统一响应外层
type apiResponse struct {
	Code json.Number     `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (r *apiResponse) ok() bool {
	return r.Code.String() == "0"
}

// sign 按照Bitunix的双重SHA256方案对请求签名。
// digest = sha256(nonce + timestamp + apiKey + queryParams + body)
// sign   = sha256(digest + apiSecret)
func (e *BitunixExchange) sign(queryParams, body string) (signature, nonce, timestamp string) {
	buf := make([]byte, 16)
	rand.Read(buf)
	nonce = hex.EncodeToString(buf)
	timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)

	first := sha256.Sum256([]byte(nonce + timestamp + e.apiKey + queryParams + body))
	second := sha256.Sum256([]byte(hex.EncodeToString(first[:]) + e.apiSecret))
	return hex.EncodeToString(second[:]), nonce, timestamp
}

// doRequest 是一个通用的请求处理函数。params 的键值按字典序拼接参与签名。
func (e *BitunixExchange) doRequest(method, endpoint string, params map[string]string, body interface{}) (*apiResponse, error) {
	var signParams string
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteString(params[k])
		}
		signParams = sb.String()
	}

	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyStr = string(data)
	}

	signature, nonce, timestamp := e.sign(signParams, bodyStr)

	fullURL := e.baseURL + endpoint
	if len(params) > 0 {
		pairs := make([]string, 0, len(params))
		for k, v := range params {
			pairs = append(pairs, k+"="+v)
		}
		fullURL += "?" + strings.Join(pairs, "&")
	}

	var reqBody io.Reader
	if bodyStr != "" {
		reqBody = strings.NewReader(bodyStr)
	}
	req, err := http.NewRequest(method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", e.apiKey)
	req.Header.Set("sign", signature)
	req.Header.Set("nonce", nonce)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("language", "en-US")
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed, status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !apiResp.ok() {
		code, _ := apiResp.Code.Int64()
		return &apiResp, &models.Error{Code: int(code), Msg: apiResp.Msg}
	}
	return &apiResp, nil
}

// --- Exchange 接口实现 ---

// GetTicker 返回最新成交价。WebSocket缓存足够新鲜时直接使用，否则走REST。
func (e *BitunixExchange) GetTicker(symbol string) (float64, error) {
	e.mu.Lock()
	cached, ok := e.lastPrice[symbol]
	e.mu.Unlock()
	if ok && time.Since(cached.at) < e.streamStale {
		return cached.price, nil
	}

	resp, err := e.doRequest("GET", "/api/v1/futures/market/tickers", map[string]string{"symbols": symbol}, nil)
	if err != nil {
		return 0, err
	}

	var tickers []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	}
	if err := json.Unmarshal(resp.Data, &tickers); err != nil {
		return 0, fmt.Errorf("failed to parse tickers: %w", err)
	}

	for _, t := range tickers {
		if t.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(t.LastPrice, 64)
		if err != nil || price == 0 {
			return 0, fmt.Errorf("invalid price %q for %s", t.LastPrice, symbol)
		}
		e.updatePrice(symbol, price)
		return price, nil
	}
	return 0, fmt.Errorf("no ticker returned for %s", symbol)
}

// GetLotSizeFilter 查询交易对的下单数量规则。
func (e *BitunixExchange) GetLotSizeFilter(symbol string) (*models.LotSizeFilter, error) {
	resp, err := e.doRequest("GET", "/api/v1/futures/market/trading_pairs", nil, nil)
	if err != nil {
		return nil, err
	}

	var instruments []struct {
		Symbol         string `json:"symbol"`
		MinTradeVolume string `json:"minTradeVolume"`
		BasePrecision  int    `json:"basePrecision"`
	}
	if err := json.Unmarshal(resp.Data, &instruments); err != nil {
		return nil, fmt.Errorf("failed to parse trading pairs: %w", err)
	}

	for _, inst := range instruments {
		if inst.Symbol != symbol {
			continue
		}
		minQty, err := strconv.ParseFloat(inst.MinTradeVolume, 64)
		if err != nil || minQty <= 0 {
			minQty = 0.01
		}
		// 数量步长由基础货币精度推导: step = 10^-basePrecision
		step := 0.01
		if inst.BasePrecision > 0 {
			step = 1
			for i := 0; i < inst.BasePrecision; i++ {
				step /= 10
			}
		}
		return &models.LotSizeFilter{MinQty: minQty, QtyStep: step}, nil
	}

	e.logger.Warnf("no lot size filter returned for %s, using defaults", symbol)
	return &models.LotSizeFilter{MinQty: 0.01, QtyStep: 0.01}, nil
}

// GetOpenPositions 返回交易所当前上报的持仓。
// tradingMode 为 "LONG"/"SHORT" 时按方向过滤，其它取全部。
func (e *BitunixExchange) GetOpenPositions(symbol, tradingMode string) ([]models.Position, error) {
	resp, err := e.doRequest("GET", "/api/v1/futures/position/get_pending_positions",
		map[string]string{"symbol": symbol}, nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		PositionID string `json:"positionId"`
		Symbol     string `json:"symbol"`
		Qty        string `json:"qty"`
		Side       string `json:"side"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}

	mode := strings.ToUpper(tradingMode)
	positions := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		qty, _ := strconv.ParseFloat(p.Qty, 64)
		if qty == 0 {
			continue
		}
		side := models.Side(strings.ToUpper(p.Side))
		if mode == "LONG" && side != models.Buy {
			continue
		}
		if mode == "SHORT" && side != models.Sell {
			continue
		}
		positions = append(positions, models.Position{
			PositionID: p.PositionID,
			Symbol:     p.Symbol,
			Qty:        qty,
			Side:       side,
		})
	}
	return positions, nil
}

// PlaceOrder 下单。返回 error 时必须认为订单未发生任何效果。
func (e *BitunixExchange) PlaceOrder(req models.OrderRequest) (*models.OrderResult, error) {
	body := map[string]interface{}{
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"orderType": req.OrderType,
		"qty":       strconv.FormatFloat(req.Qty, 'f', -1, 64),
	}
	if req.OrderType == "LIMIT" {
		body["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	if req.TradeSide != "" {
		body["tradeSide"] = string(req.TradeSide)
	}
	if req.PositionID != "" {
		body["positionId"] = req.PositionID
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}
	if req.ClientOrderID != "" {
		body["clientId"] = req.ClientOrderID
	}

	resp, err := e.doRequest("POST", "/api/v1/futures/trade/place_order", nil, body)
	if err != nil {
		e.logger.Errorw("order placement failed",
			"symbol", req.Symbol, "side", req.Side, "qty", req.Qty, "error", err)
		return nil, err
	}

	var ack struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return nil, fmt.Errorf("failed to parse order ack: %w", err)
	}
	if ack.OrderID == "" {
		return nil, fmt.Errorf("order rejected: %s", resp.Msg)
	}

	e.logger.Infow("order placed",
		"orderId", ack.OrderID, "symbol", req.Symbol, "side", req.Side, "qty", req.Qty)
	return &models.OrderResult{OrderID: ack.OrderID, FilledQty: req.Qty}, nil
}

// StartTickerStream 启动行情WebSocket守护循环，为 symbol 维护价格缓存。
// 每个交易对各开一条流；重复调用同一交易对是空操作。流断开会自动重连，
// 引擎仍按轮询方式读取价格。
func (e *BitunixExchange) StartTickerStream(symbol string) {
	if e.wsURL == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.streams[symbol]; ok {
		return
	}
	stream := newTickerStream(e.wsURL, symbol, e.updatePrice, e.logger)
	e.streams[symbol] = stream
	go stream.run()
}

func (e *BitunixExchange) updatePrice(symbol string, price float64) {
	e.mu.Lock()
	e.lastPrice[symbol] = cachedPrice{price: price, at: time.Now()}
	e.mu.Unlock()
}

// Close 停止所有行情流。
func (e *BitunixExchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, stream := range e.streams {
		stream.stop()
	}
	return nil
}
