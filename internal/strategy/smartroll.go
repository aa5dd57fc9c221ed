package strategy

import (
	"futroll/internal/account"
	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/market"
)

// SmartRoll 流动性驱动换月。
// 盯住下一个合格合约，当其前一日成交量（或持仓量）超过当前持有合约时换月；
// 距到期天数降到阈值以内时无条件强制换月，到期风险优先于流动性信号。
type SmartRoll struct {
	rollCore
	rollCriteria string // volume | oi
}

func (s *SmartRoll) Name() string { return "smart_roll" }

func (s *SmartRoll) OnBar(sig *market.SignalSnapshot, acct *account.Account) map[string]int {
	return s.advance(sig, acct, s.shouldRoll)
}

func (s *SmartRoll) shouldRoll(contract *domain.FuturesContract, sig *market.SignalSnapshot) bool {
	d := sig.TradeDate()

	days := contract.DaysToExpiry(d)
	if days <= s.rollDaysBefore {
		logger.Infof("强制换月 %s: 距到期 %d 天", contract.TsCode, days)
		return true
	}

	candidate := s.nextAfter(d, contract.TsCode)
	if candidate == nil {
		return false
	}

	// 用前一交易日的量仓比较，决策不引入当日未来数据
	var currentVal, candidateVal float64
	switch s.rollCriteria {
	case "oi":
		currentVal = sig.PrevOI(contract.TsCode)
		candidateVal = sig.PrevOI(candidate.TsCode)
	default:
		currentVal = sig.PrevVolume(contract.TsCode)
		candidateVal = sig.PrevVolume(candidate.TsCode)
	}

	// 候选必须严格更大且非零，双零并列不触发
	if candidateVal > currentVal && candidateVal > 0 {
		logger.Infof("流动性触发换月: %s(%.0f) > %s(%.0f)", candidate.TsCode, candidateVal, contract.TsCode, currentVal)
		return true
	}
	return false
}
