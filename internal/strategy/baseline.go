package strategy

import (
	"futroll/internal/account"
	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/market"
)

// BaselineRoll 基线到期换月：持有最近到期合约，
// 距到期天数降到阈值以内时换到下一个合格合约。
type BaselineRoll struct {
	rollCore
}

func (s *BaselineRoll) Name() string { return "baseline" }

func (s *BaselineRoll) OnBar(sig *market.SignalSnapshot, acct *account.Account) map[string]int {
	return s.advance(sig, acct, s.shouldRoll)
}

func (s *BaselineRoll) shouldRoll(contract *domain.FuturesContract, sig *market.SignalSnapshot) bool {
	days := contract.DaysToExpiry(sig.TradeDate())
	if days <= s.rollDaysBefore {
		logger.Infof("到期换月 %s: 距到期 %d 天", contract.TsCode, days)
		return true
	}
	return false
}
