package account

import "time"

// 成交方向。volume 为正买入，为负卖出。
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

// 常用成交原因，策略也可以自行拼接更详细的描述。
const (
	ReasonOpen      = "OPEN"
	ReasonRoll      = "ROLL"
	ReasonRebalance = "REBALANCE"
	ReasonClose     = "CLOSE"
)

// TradeRecord 单笔成交记录。
type TradeRecord struct {
	TradeDate   time.Time
	TsCode      string
	Direction   string
	Volume      int     // 成交手数，恒为正
	Price       float64 // 成交价格
	Amount      float64 // 成交金额 = |手数 * 价格 * 乘数|
	Commission  float64
	Reason      string
	RealizedPnL float64 // 平仓部分实现的盈亏，开仓为 0
}
