package engine

import (
	"fmt"

	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
)

// GenerateSummary reports the run's progress and every account's state
func (bt *BackTest) GenerateSummary() (*TaskSummary, error) {
	if bt == nil {
		return nil, fmt.Errorf("%w BackTest", gctcommon.ErrNilPointer)
	}
	bt.m.Lock()
	md := bt.MetaData
	bt.m.Unlock()

	sum := &TaskSummary{
		MetaData:   md,
		Ticks:      bt.Playback.Emitted(),
		OutOfOrder: bt.Playback.OutOfOrder(),
		Skipped:    bt.Playback.Skipped(),
		Orders:     bt.stats.orders.Load(),
		Rejected:   bt.stats.rejected.Load(),
		Fills:      bt.stats.fills.Load(),
		Cancelled:  bt.stats.cancelled.Load(),
		Pending:    bt.OrderBook.PendingCount(),
		Bars:       bt.stats.bars.Load(),
	}
	for _, a := range bt.OrderBook.Accounts() {
		sum.Accounts = append(sum.Accounts, AccountSummary{
			Name:           a.Name(),
			Currency:       a.Currency(),
			InitialBalance: a.InitialBalance(),
			Balance:        a.Balance(),
			Equity:         a.Equity(),
			RealizedPnL:    a.RealizedPnL(),
			Commission:     a.Commission(),
			MarginLevel:    a.MarginLevel(),
			Trades:         len(a.Trades()),
			Positions:      a.Positions(),
		})
	}
	return sum, nil
}

// PrintSummary logs the summary for easy reading
func (s *TaskSummary) PrintSummary() {
	log.Info(log.BackTester, "------------------Summary------------------------------------")
	log.Infof(log.BackTester, "Run: %v %s", s.MetaData.ID, s.MetaData.Nickname)
	if !s.MetaData.DateEnded.IsZero() {
		log.Infof(log.BackTester, "Duration: %v", s.MetaData.DateEnded.Sub(s.MetaData.DateStarted))
	}
	if s.MetaData.Stopped {
		log.Warn(log.BackTester, "Run was stopped before all ticks played")
	}
	log.Infof(log.BackTester, "Ticks: %d out of order: %d skipped sources: %d", s.Ticks, s.OutOfOrder, s.Skipped)
	log.Infof(log.BackTester, "Orders: %d rejected: %d cancelled: %d pending: %d", s.Orders, s.Rejected, s.Cancelled, s.Pending)
	log.Infof(log.BackTester, "Fills: %d", s.Fills)
	if s.Bars > 0 {
		log.Infof(log.BackTester, "Bars: %d", s.Bars)
	}
	for i := range s.Accounts {
		a := &s.Accounts[i]
		log.Infof(log.BackTester, "------------------Account %s------------------", a.Name)
		log.Infof(log.BackTester, "Initial balance: %v %s", a.InitialBalance.Round(2), a.Currency)
		log.Infof(log.BackTester, "Balance: %v equity: %v", a.Balance.Round(2), a.Equity.Round(2))
		log.Infof(log.BackTester, "Realised PnL: %v commission: %v", a.RealizedPnL.Round(2), a.Commission.Round(2))
		if !a.MarginLevel.IsZero() {
			log.Infof(log.BackTester, "Margin level: %v%%", a.MarginLevel.Round(2))
		}
		log.Infof(log.BackTester, "Trades: %d", a.Trades)
		for j := range a.Positions {
			log.Infof(log.BackTester, "Position %s", &a.Positions[j])
		}
	}
}
