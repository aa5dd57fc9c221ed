// Package strategy 实现换月策略：基线到期换月与流动性驱动换月。
package strategy

import (
	"fmt"
	"time"

	"futroll/internal/account"
	"futroll/internal/config"
	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/market"
)

// Strategy 策略抽象。每个交易日调用一次 OnBar，
// 返回目标持仓（合约代码 -> 带符号手数），由账户负责调仓成交。
type Strategy interface {
	Name() string
	OnBar(sig *market.SignalSnapshot, acct *account.Account) map[string]int
}

// New 按配置组装策略。
func New(cfg config.StrategyConfig, chain *domain.ContractChain) (Strategy, error) {
	core := rollCore{
		chain:            chain,
		rollDaysBefore:   cfg.RollDaysBeforeExpiry,
		minRollDays:      cfg.MinRollDays,
		targetLeverage:   cfg.TargetLeverage,
		signalPriceField: cfg.SignalPriceField,
	}
	switch cfg.Name {
	case "baseline":
		return &BaselineRoll{rollCore: core}, nil
	case "smart_roll":
		return &SmartRoll{rollCore: core, rollCriteria: cfg.RollCriteria}, nil
	default:
		return nil, fmt.Errorf("未知策略: %s", cfg.Name)
	}
}

// rollCore 换月策略共用的状态与工具：当前持有合约、上一次目标、
// 选约与仓位计算。具体策略只注入各自的换月判定。
type rollCore struct {
	chain            *domain.ContractChain
	rollDaysBefore   int
	minRollDays      int
	targetLeverage   float64
	signalPriceField string

	current     *domain.FuturesContract // 当前持有合约，未建仓为 nil
	lastTargets map[string]int          // 上一次给出的目标持仓
}

// advance 推进一次决策。未建仓时初始选约建仓；已建仓时按 shouldRoll
// 判定是否换月；其余情况原样重复上一次目标（策略惰性，不逐日调仓）。
func (c *rollCore) advance(sig *market.SignalSnapshot, acct *account.Account, shouldRoll func(*domain.FuturesContract, *market.SignalSnapshot) bool) map[string]int {
	d := sig.TradeDate()

	if c.current == nil {
		contract := c.selectInitial(d)
		if contract == nil {
			logger.Warnf("%s 无可建仓合约", labelDate(d))
			return map[string]int{}
		}
		volume, ok := c.targetVolume(sig, acct, contract)
		if !ok {
			// 当日无信号价，保持空仓等下一日
			return map[string]int{}
		}
		c.current = contract
		c.lastTargets = map[string]int{contract.TsCode: volume}
		logger.Infof("初始建仓 %s: %d 手", contract.TsCode, volume)
		return copyTargets(c.lastTargets)
	}

	if shouldRoll(c.current, sig) {
		next := c.nextAfter(d, c.current.TsCode)
		if next == nil {
			logger.Warnf("%s 无换月目标，继续持有 %s", labelDate(d), c.current.TsCode)
			return copyTargets(c.lastTargets)
		}
		volume, ok := c.targetVolume(sig, acct, next)
		if !ok {
			logger.Warnf("%s 换月目标 %s 无信号价，推迟换月", labelDate(d), next.TsCode)
			return copyTargets(c.lastTargets)
		}
		logger.Infof("换月 %s -> %s: %d 手", c.current.TsCode, next.TsCode, volume)
		c.current = next
		c.lastTargets = map[string]int{next.TsCode: volume}
		return copyTargets(c.lastTargets)
	}

	return copyTargets(c.lastTargets)
}

// selectInitial 起始选约：剩余期限大于 minRollDays 的最近到期合约。
func (c *rollCore) selectInitial(d time.Time) *domain.FuturesContract {
	candidates := c.chain.ExpiringAfter(d, c.minRollDays)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// nextAfter 换月目标：排除当前持有后最近到期的合格合约。
func (c *rollCore) nextAfter(d time.Time, exclude string) *domain.FuturesContract {
	for _, cand := range c.chain.ExpiringAfter(d, c.minRollDays) {
		if cand.TsCode != exclude {
			return cand
		}
	}
	return nil
}

// targetVolume 目标手数 = floor(权益 * 目标杠杆 / (信号价 * 乘数))。
// 信号价缺失或非正返回 false。
func (c *rollCore) targetVolume(sig *market.SignalSnapshot, acct *account.Account, contract *domain.FuturesContract) (int, bool) {
	price, ok := sig.FuturesPrice(contract.TsCode, c.signalPriceField)
	if !ok || price <= 0 {
		return 0, false
	}
	volume := int(acct.Equity() * c.targetLeverage / (price * contract.Multiplier))
	return volume, true
}

// Current 当前持有合约代码，未建仓返回空串。
func (c *rollCore) Current() string {
	if c.current == nil {
		return ""
	}
	return c.current.TsCode
}

func copyTargets(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func labelDate(d time.Time) string { return d.Format("2006-01-02") }
