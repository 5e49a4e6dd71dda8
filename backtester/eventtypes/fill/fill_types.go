package fill

import (
	"github.com/shopspring/decimal"
)

// Trade is the immutable record of an order execution
type Trade struct {
	OrderID    int64           `json:"order-id"`
	Symbol     string          `json:"symbol"`
	Account    string          `json:"account"`
	AgentID    string          `json:"agent-id"`
	Size       int64           `json:"size"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Date       int             `json:"date"`
	Time       int             `json:"time"`
	Exchange   string          `json:"exchange"`
}
