package exchange

import (
	"math"

	"bitunix-trend-bot-go/internal/models"
)

// Exchange 定义了引擎消费的交易所合约。
// 任何调用都可能失败；失败必须被视为"什么都没有发生"，绝不能假定部分成功。
type Exchange interface {
	// GetTicker returns the latest traded price for symbol.
	GetTicker(symbol string) (float64, error)

	// GetLotSizeFilter returns the minimum quantity and quantity step the
	// exchange enforces for symbol.
	GetLotSizeFilter(symbol string) (*models.LotSizeFilter, error)

	// GetOpenPositions lists the positions the exchange currently reports
	// for symbol under the given trading mode. The exchange is the
	// authority on remaining exposure, not the bot's bookkeeping.
	GetOpenPositions(symbol, tradingMode string) ([]models.Position, error)

	// PlaceOrder submits one order and returns its acknowledgement.
	PlaceOrder(req models.OrderRequest) (*models.OrderResult, error)

	// Close releases any underlying connections.
	Close() error
}

// RoundQuantity 将数量对齐到交易所的最小步长，并保证不低于最小下单量。
// 小数位数由步长宽度决定：>=1 取整, >=0.1 保留1位, >=0.01 保留2位, 其余3位。
func RoundQuantity(qty float64, filter *models.LotSizeFilter) float64 {
	if filter == nil || filter.QtyStep <= 0 {
		return qty
	}

	rounded := math.Round(qty/filter.QtyStep) * filter.QtyStep
	if rounded < filter.MinQty {
		rounded = filter.MinQty
	}

	switch {
	case filter.QtyStep >= 1:
		return math.Round(rounded)
	case filter.QtyStep >= 0.1:
		return roundTo(rounded, 1)
	case filter.QtyStep >= 0.01:
		return roundTo(rounded, 2)
	default:
		return roundTo(rounded, 3)
	}
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
