package usecase

import (
	"context"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// BalanceGuard 在儲存層的臨界區內執行的餘額檢查
// 回傳非 nil 錯誤時整筆交易中止，不留下任何紀錄
type BalanceGuard func(balance int64) error

// Ledger 是帳本儲存的介面，唯一的餘額真相來源
type Ledger interface {
	// CreateAccount 建立帳戶，初始餘額為 0
	CreateAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// DeleteAccount 刪除帳戶並連帶刪除其交易紀錄
	DeleteAccount(ctx context.Context, accountID int64) error
	// GetAccountBalance 取得帳戶餘額
	GetAccountBalance(ctx context.Context, accountID int64) (int64, error)
	// AppendTransaction 持久化一筆交易並更新餘額，兩者在同一個原子單位內完成
	// guard (可為 nil) 會在讀取與寫入之間、持有該帳戶的鎖時執行
	// 回傳更新後的餘額；重複的 RefID 視為已完成，
	// tran 會回填成當初寫入的那筆交易，並回傳當前餘額
	AppendTransaction(ctx context.Context, tran *domain.Transaction, guard BalanceGuard) (int64, error)
	// ListTransactions 依建立時間由新到舊列出交易
	// kind 為 0 時不過濾
	ListTransactions(ctx context.Context, accountID int64, kind domain.TransactionKind, offset, limit int) ([]domain.Transaction, error)
	// Aggregate 彙總 [since, until) 區間內已完成的交易 (Unix 毫秒，until 為 0 表示不設上界)
	Aggregate(ctx context.Context, accountID int64, since, until int64) (*domain.Summary, error)
	// LoadAllAccounts 載入所有帳戶
	LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error)
}

// AuditPublisher 對外發布已完成交易的審計事件
type AuditPublisher interface {
	PublishTransaction(ctx context.Context, tran *domain.Transaction, balance int64) error
}
