package domain

import (
	"sort"
	"time"
)

// ContractChain 同一品种全部合约的集合，按 TsCode 索引。
// 两类查询都按摘牌日升序返回（最近到期在前），该顺序即移仓目标的优先级。
type ContractChain struct {
	FutCode string
	Index   *EquityIndex

	contracts map[string]*FuturesContract
}

func NewContractChain(futCode string, index *EquityIndex) *ContractChain {
	return &ContractChain{
		FutCode:   futCode,
		Index:     index,
		contracts: make(map[string]*FuturesContract),
	}
}

// Add 登记合约（同 TsCode 覆盖）。
func (ch *ContractChain) Add(c *FuturesContract) {
	if c == nil || c.TsCode == "" {
		return
	}
	ch.contracts[c.TsCode] = c
}

// Get 按代码取合约。
func (ch *ContractChain) Get(tsCode string) (*FuturesContract, bool) {
	c, ok := ch.contracts[tsCode]
	return c, ok
}

// Len 合约数量。
func (ch *ContractChain) Len() int { return len(ch.contracts) }

// Contracts 全部合约，按摘牌日升序。
func (ch *ContractChain) Contracts() []*FuturesContract {
	out := make([]*FuturesContract, 0, len(ch.contracts))
	for _, c := range ch.contracts {
		out = append(out, c)
	}
	sortByDelist(out)
	return out
}

// TradableOn 指定日可交易的合约（已上市且未摘牌），按摘牌日升序。
func (ch *ContractChain) TradableOn(d time.Time) []*FuturesContract {
	var out []*FuturesContract
	for _, c := range ch.contracts {
		if c.IsTradable(d) {
			out = append(out, c)
		}
	}
	sortByDelist(out)
	return out
}

// ExpiringAfter 指定日已上市、且距到期严格超过 minDays 个自然日的合约，
// 按摘牌日升序。未上市合约不参与：行情缺失会让换仓腿被跳过。
func (ch *ContractChain) ExpiringAfter(d time.Time, minDays int) []*FuturesContract {
	var out []*FuturesContract
	for _, c := range ch.contracts {
		if !c.IsListed(d) {
			continue
		}
		if c.DaysToExpiry(d) > minDays {
			out = append(out, c)
		}
	}
	sortByDelist(out)
	return out
}

func sortByDelist(cs []*FuturesContract) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DelistDate.Equal(cs[j].DelistDate) {
			return cs[i].TsCode < cs[j].TsCode
		}
		return cs[i].DelistDate.Before(cs[j].DelistDate)
	})
}
