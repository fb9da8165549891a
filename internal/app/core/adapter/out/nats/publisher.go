package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// transactionEvent 發布到 NATS 的審計事件格式
type transactionEvent struct {
	ID          int64  `json:"id"`
	RefID       string `json:"ref_id"`
	AccountID   int64  `json:"account_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Balance     int64  `json:"balance"`
	CreatedAt   int64  `json:"created_at"`
}

// Publisher 把已完成的交易發布成 NATS 事件，供下游 (對帳、通知) 訂閱
type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		subject: subject,
	}, nil
}

// PublishTransaction 發布一筆交易事件
// subject 會加上交易類型後綴，例如 ledger.transactions.debit
func (p *Publisher) PublishTransaction(ctx context.Context, tran *domain.Transaction, balance int64) error {
	payload, err := json.Marshal(transactionEvent{
		ID:          tran.ID,
		RefID:       tran.RefID.String(),
		AccountID:   tran.AccountID,
		Amount:      tran.Amount,
		Kind:        tran.Kind.String(),
		Status:      tran.Status.String(),
		Description: tran.Description,
		Balance:     balance,
		CreatedAt:   tran.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject+"."+tran.Kind.String(), payload)
}

// Close 清空緩衝並關閉連線
func (p *Publisher) Close() {
	p.nc.Drain()
}

var _ usecase.AuditPublisher = (*Publisher)(nil)
