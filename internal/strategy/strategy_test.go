package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futroll/internal/account"
	"futroll/internal/config"
	"futroll/internal/domain"
	"futroll/internal/market"
	"futroll/internal/pkg/dateutil"
)

func testStrategyConfig(name string) config.StrategyConfig {
	return config.StrategyConfig{
		Name:                 name,
		RollDaysBeforeExpiry: 1,
		MinRollDays:          5,
		RollCriteria:         "volume",
		TargetLeverage:       1.0,
		ContractSelection:    "nearby",
		SignalPriceField:     "open",
	}
}

func mkContract(tsCode, list, delist string) *domain.FuturesContract {
	return domain.NewContract(tsCode, "IC", 200, dateutil.MustParse(list), dateutil.MustParse(delist))
}

func mkChain(contracts ...*domain.FuturesContract) *domain.ContractChain {
	chain := domain.NewContractChain("IC", domain.NewEquityIndex("000905.SH", "CSI500"))
	for _, c := range contracts {
		chain.Add(c)
	}
	return chain
}

// mkSignal 手工拼一个信号快照：quotes 给开盘价，prev 给前日量仓。
func mkSignal(d time.Time, opens map[string]float64, prevVolumes map[string]float64, prevOIs map[string]float64) *market.SignalSnapshot {
	quotes := make(map[string]*domain.FuturesDailyBar)
	for code, p := range opens {
		quotes[code] = &domain.FuturesDailyBar{TradeDate: d, Open: p}
	}
	prev := make(map[string]*domain.FuturesDailyBar)
	for code, v := range prevVolumes {
		prev[code] = &domain.FuturesDailyBar{Volume: v}
	}
	for code, oi := range prevOIs {
		bar, ok := prev[code]
		if !ok {
			bar = &domain.FuturesDailyBar{}
			prev[code] = bar
		}
		bar.OpenInterest = oi
	}
	idxBar := &domain.IndexDailyBar{TradeDate: d, Close: 5000}
	return market.NewSignalSnapshot(market.NewSnapshot(d, idxBar, quotes), prev)
}

func TestNewStrategy(t *testing.T) {
	chain := mkChain()

	s, err := New(testStrategyConfig("baseline"), chain)
	require.NoError(t, err)
	assert.Equal(t, "baseline", s.Name())

	s, err = New(testStrategyConfig("smart_roll"), chain)
	require.NoError(t, err)
	assert.Equal(t, "smart_roll", s.Name())

	_, err = New(testStrategyConfig("kalman"), chain)
	assert.Error(t, err)
}

func TestInitialOpenPicksNearbyEligible(t *testing.T) {
	a := mkContract("IC2401.CFX", "20230821", "20240119")
	b := mkContract("IC2402.CFX", "20230918", "20240218")
	chain := mkChain(a, b)
	s, err := New(testStrategyConfig("smart_roll"), chain)
	require.NoError(t, err)
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")

	d := dateutil.MustParse("20240110") // IC2401 还剩 9 天，满足 min_roll_days=5
	sig := mkSignal(d, map[string]float64{"IC2401.CFX": 5000, "IC2402.CFX": 5080}, nil, nil)

	targets := s.OnBar(sig, acct)

	// 10000000 * 1.0 / (5000 * 200) = 10 手，选最近到期的 IC2401
	assert.Equal(t, map[string]int{"IC2401.CFX": 10}, targets)
}

func TestInitialOpenWaitsWithoutSignalPrice(t *testing.T) {
	a := mkContract("IC2401.CFX", "20230821", "20240119")
	chain := mkChain(a)
	s, err := New(testStrategyConfig("smart_roll"), chain)
	require.NoError(t, err)
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")

	d := dateutil.MustParse("20240110")
	sig := mkSignal(d, nil, nil, nil) // 当日无行情

	targets := s.OnBar(sig, acct)

	assert.Empty(t, targets, "无信号价时保持空仓等待")
}

func TestSmartRollForcedAtExpiry(t *testing.T) {
	// 距到期 1 天必须强制换月，即便候选合约前日成交量为零
	a := mkContract("IC2401.CFX", "20230821", "20240119")
	b := mkContract("IC2402.CFX", "20230918", "20240218")
	chain := mkChain(a, b)
	s := &SmartRoll{rollCore: rollCore{
		chain: chain, rollDaysBefore: 1, minRollDays: 5,
		targetLeverage: 1.0, signalPriceField: "open",
		current:     a,
		lastTargets: map[string]int{"IC2401.CFX": 10},
	}, rollCriteria: "volume"}
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")

	d := dateutil.MustParse("20240118") // IC2401 还剩 1 天
	sig := mkSignal(d,
		map[string]float64{"IC2401.CFX": 5000, "IC2402.CFX": 5080},
		map[string]float64{"IC2401.CFX": 30000, "IC2402.CFX": 0}, nil)

	targets := s.OnBar(sig, acct)

	// 10000000 / (5080 * 200) = 9.84 -> 9 手
	assert.Equal(t, map[string]int{"IC2402.CFX": 9}, targets)
	assert.Equal(t, "IC2402.CFX", s.Current())
}

func TestSmartRollLiquidityCrossover(t *testing.T) {
	a := mkContract("IC2402.CFX", "20230918", "20240218")
	b := mkContract("IC2403.CFX", "20231016", "20240315")
	mk := func(criteria string) *SmartRoll {
		return &SmartRoll{rollCore: rollCore{
			chain: mkChain(a, b), rollDaysBefore: 1, minRollDays: 5,
			targetLeverage: 1.0, signalPriceField: "open",
			current:     a,
			lastTargets: map[string]int{"IC2402.CFX": 10},
		}, rollCriteria: criteria}
	}
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")
	d := dateutil.MustParse("20240120") // IC2402 还剩 29 天，不触发强制换月

	t.Run("CandidateVolumeExceeds", func(t *testing.T) {
		s := mk("volume")
		sig := mkSignal(d,
			map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100},
			map[string]float64{"IC2402.CFX": 30000, "IC2403.CFX": 35000}, nil)

		targets := s.OnBar(sig, acct)

		assert.Contains(t, targets, "IC2403.CFX")
		assert.NotContains(t, targets, "IC2402.CFX")
	})

	t.Run("TieDoesNotTrigger", func(t *testing.T) {
		s := mk("volume")
		sig := mkSignal(d,
			map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100},
			map[string]float64{"IC2402.CFX": 30000, "IC2403.CFX": 30000}, nil)

		targets := s.OnBar(sig, acct)

		assert.Equal(t, map[string]int{"IC2402.CFX": 10}, targets, "候选量仅并列不换月")
	})

	t.Run("BothZeroDoesNotTrigger", func(t *testing.T) {
		s := mk("volume")
		sig := mkSignal(d,
			map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100},
			map[string]float64{}, nil)

		targets := s.OnBar(sig, acct)

		assert.Equal(t, map[string]int{"IC2402.CFX": 10}, targets, "双零不得触发换月")
	})

	t.Run("OpenInterestCriteria", func(t *testing.T) {
		s := mk("oi")
		sig := mkSignal(d,
			map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100},
			map[string]float64{"IC2402.CFX": 99999, "IC2403.CFX": 1}, // volume 反向，确认不看 volume
			map[string]float64{"IC2402.CFX": 50000, "IC2403.CFX": 60000})

		targets := s.OnBar(sig, acct)

		assert.Contains(t, targets, "IC2403.CFX")
	})
}

func TestSmartRollDefersWithoutCandidatePrice(t *testing.T) {
	a := mkContract("IC2401.CFX", "20230821", "20240119")
	b := mkContract("IC2402.CFX", "20230918", "20240218")
	s := &SmartRoll{rollCore: rollCore{
		chain: mkChain(a, b), rollDaysBefore: 1, minRollDays: 5,
		targetLeverage: 1.0, signalPriceField: "open",
		current:     a,
		lastTargets: map[string]int{"IC2401.CFX": 10},
	}, rollCriteria: "volume"}
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")

	d := dateutil.MustParse("20240118")
	sig := mkSignal(d, map[string]float64{"IC2401.CFX": 5000}, nil, nil) // 候选无开盘价

	targets := s.OnBar(sig, acct)

	assert.Equal(t, map[string]int{"IC2401.CFX": 10}, targets, "候选无信号价时推迟换月")
	assert.Equal(t, "IC2401.CFX", s.Current())
}

func TestBaselineRollOnlyNearExpiry(t *testing.T) {
	a := mkContract("IC2402.CFX", "20230918", "20240218")
	b := mkContract("IC2403.CFX", "20231016", "20240315")
	mk := func() *BaselineRoll {
		return &BaselineRoll{rollCore: rollCore{
			chain: mkChain(a, b), rollDaysBefore: 1, minRollDays: 5,
			targetLeverage: 1.0, signalPriceField: "open",
			current:     a,
			lastTargets: map[string]int{"IC2402.CFX": 10},
		}}
	}
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")
	opens := map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100}

	t.Run("FarFromExpiryHolds", func(t *testing.T) {
		s := mk()
		// 基线策略无视流动性信号，候选量再大也不提前换月
		sig := mkSignal(dateutil.MustParse("20240120"), opens,
			map[string]float64{"IC2402.CFX": 1, "IC2403.CFX": 99999}, nil)

		targets := s.OnBar(sig, acct)

		assert.Equal(t, map[string]int{"IC2402.CFX": 10}, targets)
	})

	t.Run("AtThresholdRolls", func(t *testing.T) {
		s := mk()
		sig := mkSignal(dateutil.MustParse("20240217"), opens, nil, nil) // 还剩 1 天

		targets := s.OnBar(sig, acct)

		assert.Contains(t, targets, "IC2403.CFX")
		assert.NotContains(t, targets, "IC2402.CFX")
	})
}

func TestInertRepeatsPriorTargets(t *testing.T) {
	a := mkContract("IC2402.CFX", "20230918", "20240218")
	b := mkContract("IC2403.CFX", "20231016", "20240315")
	s := &SmartRoll{rollCore: rollCore{
		chain: mkChain(a, b), rollDaysBefore: 1, minRollDays: 5,
		targetLeverage: 1.0, signalPriceField: "open",
		current:     a,
		lastTargets: map[string]int{"IC2402.CFX": 10},
	}, rollCriteria: "volume"}
	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")

	d := dateutil.MustParse("20240120")
	sig := mkSignal(d, map[string]float64{"IC2402.CFX": 5000, "IC2403.CFX": 5100}, nil, nil)

	first := s.OnBar(sig, acct)
	first["IC2402.CFX"] = 999 // 调用方改动返回值不得污染策略内部状态

	second := s.OnBar(sig, acct)

	assert.Equal(t, map[string]int{"IC2402.CFX": 10}, second)
}
