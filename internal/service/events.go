package service

import (
	"encoding/json"
	"time"

	"accountstate/internal/model"
)

// 账户事件类型
const (
	EventAccountCreated   = "ACCOUNT_CREATED"
	EventAccountDeposited = "ACCOUNT_DEPOSITED"
	EventAccountWithdrawn = "ACCOUNT_WITHDRAWN"
	EventAccountFrozen    = "ACCOUNT_FROZEN"
	EventAccountUnfrozen  = "ACCOUNT_UNFROZEN"
	EventAccountClosed    = "ACCOUNT_CLOSED"
)

// AccountEvent 投递到 Kafka 的账户事件
type AccountEvent struct {
	Event         string    `json:"event"`
	AccountNo     string    `json:"account_no"`
	Balance       int64     `json:"balance"`
	Status        string    `json:"status"`
	PrevStatus    string    `json:"prev_status,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	TransactionNo string    `json:"transaction_no,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// outboxMessage 事件以账号为 key，保证同一账户的事件落在同一分区、按序消费
func outboxMessage(topic string, ev AccountEvent) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &model.OutboxMessage{
		MessageKey: ev.AccountNo,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}
