package usecase

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層，也是唯一合法的餘額變更入口
// 本身不持有狀態，可以安全地被多個 goroutine 共用
type CoreUseCase struct {
	ledger Ledger
	audit  AuditPublisher
}

func NewCoreUseCase(ledger Ledger) *CoreUseCase {
	return &CoreUseCase{
		ledger: ledger,
	}
}

// WithAuditPublisher 設定審計事件發布器 (可選)
func (c *CoreUseCase) WithAuditPublisher(audit AuditPublisher) *CoreUseCase {
	c.audit = audit
	return c
}

// Credit 入帳
// 金額必須為正數；入帳不會違反餘額不變式，不需要檢查餘額
func (c *CoreUseCase) Credit(ctx context.Context, accountID, amount int64, refID uuid.UUID, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if refID == uuid.Nil {
		refID = uuid.New()
	}

	tran := domain.NewCredit(accountID, amount, refID, description)
	balance, err := c.ledger.AppendTransaction(ctx, tran, nil)
	if err != nil {
		return nil, err
	}

	c.publishAudit(ctx, tran, balance)
	return tran, nil
}

// Debit 扣帳
// 餘額不足時回傳 ErrInsufficientBalance，不留下任何紀錄
// 餘額檢查透過 guard 在儲存層的臨界區內執行，
// 同帳戶的並發扣帳因此是可序列化的
func (c *CoreUseCase) Debit(ctx context.Context, accountID, amount int64, refID uuid.UUID, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if refID == uuid.Nil {
		refID = uuid.New()
	}

	tran := domain.NewDebit(accountID, amount, refID, description)
	balance, err := c.ledger.AppendTransaction(ctx, tran, func(balance int64) error {
		if balance < amount {
			return domain.ErrInsufficientBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// 防禦性檢查，正常加鎖下不可能發生
	if balance < 0 {
		return nil, domain.ErrNegativeBalance
	}

	c.publishAudit(ctx, tran, balance)
	return tran, nil
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	return c.ledger.GetAccountBalance(ctx, accountID)
}

// ListTransactions 列出交易，由新到舊
func (c *CoreUseCase) ListTransactions(ctx context.Context, accountID int64, kind domain.TransactionKind, offset, limit int) ([]domain.Transaction, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	return c.ledger.ListTransactions(ctx, accountID, kind, offset, limit)
}

// Aggregate 彙總 since 之後已完成的交易
func (c *CoreUseCase) Aggregate(ctx context.Context, accountID int64, since time.Time) (*domain.Summary, error) {
	return c.ledger.Aggregate(ctx, accountID, since.UnixMilli(), 0)
}

// DailySummary 回傳最近 days 天的每日扣帳總額，由舊到新
func (c *CoreUseCase) DailySummary(ctx context.Context, accountID int64, days int) ([]domain.DailyTotal, error) {
	if days <= 0 {
		days = 7
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	out := make([]domain.DailyTotal, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		next := day.AddDate(0, 0, 1)

		sum, err := c.ledger.Aggregate(ctx, accountID, day.UnixMilli(), next.UnixMilli())
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DailyTotal{
			Date:       day.Format("02/01/2006"),
			DebitTotal: sum.DebitTotal,
		})
	}
	return out, nil
}

// CreateAccount 建立帳戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return c.ledger.CreateAccount(ctx, accountID)
}

// DeleteAccount 刪除帳戶與其所有交易
func (c *CoreUseCase) DeleteAccount(ctx context.Context, accountID int64) error {
	return c.ledger.DeleteAccount(ctx, accountID)
}

// publishAudit 發布審計事件 (Best Effort，失敗只記 Log 不影響交易結果)
func (c *CoreUseCase) publishAudit(ctx context.Context, tran *domain.Transaction, balance int64) {
	if c.audit == nil {
		return
	}
	if err := c.audit.PublishTransaction(ctx, tran, balance); err != nil {
		log.Printf("audit publish failed for ref_id=%s: %v", tran.RefID, err)
	}
}
