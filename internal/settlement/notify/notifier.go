package notify

import "context"

// Alert kinds.
const (
	KindNegativePayout = "negative_payout"
	KindDisputed       = "disputed"
)

// AlertMessage describes a settlement that needs a fleet manager's attention.
type AlertMessage struct {
	Kind         string `json:"kind"`
	CompanyID    string `json:"company_id"`
	ContractID   string `json:"contract_id"`
	SettlementID string `json:"settlement_id"`
	Period       string `json:"period,omitempty"`
	NetPayout    string `json:"net_payout,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
