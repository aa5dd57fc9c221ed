package account

import (
	"fmt"
	"math"
	"time"

	"futroll/internal/domain"
)

// Position 单合约持仓。volume 为正表示多头，为负表示空头。
// 期货逐日盯市，last_settle 记录上一次结算(或成交)价格，
// 每日盈亏 = (今日结算价 - last_settle) * volume * 乘数。
type Position struct {
	Contract   *domain.FuturesContract
	Volume     int
	EntryPrice float64 // 加权平均开仓价
	LastSettle float64
}

// NewPosition 建仓。last_settle 初始化为开仓价。
func NewPosition(contract *domain.FuturesContract, volume int, entryPrice float64) *Position {
	return &Position{
		Contract:   contract,
		Volume:     volume,
		EntryPrice: entryPrice,
		LastSettle: entryPrice,
	}
}

func (p *Position) String() string {
	direction := "LONG"
	if p.Volume < 0 {
		direction = "SHORT"
	}
	return fmt.Sprintf("Position(%s, %s %d 手 @ %.2f)", p.Contract.TsCode, direction, abs(p.Volume), p.LastSettle)
}

func (p *Position) TsCode() string { return p.Contract.TsCode }

func (p *Position) Multiplier() float64 { return p.Contract.Multiplier }

// MarkToMarket 逐日盯市。当日无结算价时返回 0 且不改变状态。
func (p *Position) MarkToMarket(d time.Time) float64 {
	settle, ok := p.Contract.GetPrice(d, domain.FieldSettle)
	if !ok {
		return 0
	}
	pnl := (settle - p.LastSettle) * float64(p.Volume) * p.Contract.Multiplier
	p.LastSettle = settle
	return pnl
}

// NotionalValue 持仓名义金额 = |价格 * volume * 乘数|。
// 当日无结算价时退回 last_settle 估值。
func (p *Position) NotionalValue(d time.Time) float64 {
	price, ok := p.Contract.GetPrice(d, domain.FieldSettle)
	if !ok {
		price = p.LastSettle
	}
	return math.Abs(price * float64(p.Volume) * p.Contract.Multiplier)
}

func (p *Position) DaysToExpiry(d time.Time) int { return p.Contract.DaysToExpiry(d) }

func (p *Position) IsExpired(d time.Time) bool { return p.Contract.IsExpired(d) }

// UpdateVolume 按带符号的 delta 调整持仓，返回平仓部分实现的盈亏。
// 仅当 delta 与现有方向相反时产生实现盈亏，平仓手数取 min(|delta|, |volume|)。
// 加仓(|新仓| > |旧仓|)时开仓价按新增手数加权重算；
// 无论加减仓，last_settle 一律更新为本次成交价，下一次盯市从成交价起算。
func (p *Position) UpdateVolume(delta int, price float64) float64 {
	if delta == 0 {
		return 0
	}

	realized := 0.0
	if (p.Volume > 0 && delta < 0) || (p.Volume < 0 && delta > 0) {
		closeVolume := min(abs(delta), abs(p.Volume))
		if p.Volume > 0 {
			realized = (price - p.EntryPrice) * float64(closeVolume) * p.Contract.Multiplier
		} else {
			realized = (p.EntryPrice - price) * float64(closeVolume) * p.Contract.Multiplier
		}
	}

	newVolume := p.Volume + delta
	if newVolume != 0 && abs(newVolume) > abs(p.Volume) {
		addVolume := abs(delta)
		oldValue := p.EntryPrice * float64(abs(p.Volume))
		newValue := price * float64(addVolume)
		p.EntryPrice = (oldValue + newValue) / float64(abs(newVolume))
	}

	p.Volume = newVolume
	p.LastSettle = price
	return realized
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
