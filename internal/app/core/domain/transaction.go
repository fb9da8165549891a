package domain

import "github.com/google/uuid"

// TransactionKind 交易類型
// 為了節省記憶體，使用 uint8
type TransactionKind uint8

const (
	// 入帳 (加值)
	TransactionKindCredit TransactionKind = 1
	// 扣帳 (消費)
	TransactionKindDebit TransactionKind = 2
)

// String 回傳對外 API 使用的字串表示
func (k TransactionKind) String() string {
	switch k {
	case TransactionKindCredit:
		return "credit"
	case TransactionKindDebit:
		return "debit"
	}
	return "unknown"
}

// ParseTransactionKind 解析字串為 TransactionKind
// 空字串回傳 0，代表不過濾
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch s {
	case "":
		return 0, nil
	case "credit":
		return TransactionKindCredit, nil
	case "debit":
		return TransactionKindDebit, nil
	}
	return 0, ErrUnknownTransactionKind
}

// TransactionStatus 交易狀態
// 同步流程只會產生 Completed，Failed/Pending 保留給未來的非同步結算
type TransactionStatus uint8

const (
	TransactionStatusCompleted TransactionStatus = 1
	TransactionStatusFailed    TransactionStatus = 2
	TransactionStatusPending   TransactionStatus = 3
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionStatusCompleted:
		return "completed"
	case TransactionStatusFailed:
		return "failed"
	case TransactionStatusPending:
		return "pending"
	}
	return "unknown"
}

// Transaction 交易紀錄 (Append-only，建立後不可修改)
// Amount 永遠為正數，方向由 Kind 決定
// 注意欄位排序以避免 Padding
type Transaction struct {
	// ID: 由儲存層分配的單調遞增序號
	ID int64
	// AccountID: 所屬帳戶
	AccountID int64
	// Amount: 金額 (定點數，小數點後 4 位，見 pkg/money)
	Amount int64
	// CreatedAt: 建立時間 (Unix 毫秒)
	CreatedAt int64
	// RefID: 外部追蹤號 (UUID)，重複的 RefID 視為同一筆交易
	RefID uuid.UUID
	// Description: 操作說明，可為空
	Description string
	// Kind, Status: 放到最後面，利用 Padding 空間
	Kind   TransactionKind
	Status TransactionStatus
}

// NewCredit 建立一筆入帳交易
func NewCredit(accountID, amount int64, refID uuid.UUID, description string) *Transaction {
	return &Transaction{
		AccountID:   accountID,
		Amount:      amount,
		RefID:       refID,
		Description: description,
		Kind:        TransactionKindCredit,
		Status:      TransactionStatusCompleted,
	}
}

// NewDebit 建立一筆扣帳交易
func NewDebit(accountID, amount int64, refID uuid.UUID, description string) *Transaction {
	return &Transaction{
		AccountID:   accountID,
		Amount:      amount,
		RefID:       refID,
		Description: description,
		Kind:        TransactionKindDebit,
		Status:      TransactionStatusCompleted,
	}
}

// Summary 一段期間內已完成交易的彙總
type Summary struct {
	CreditTotal int64
	DebitTotal  int64
	Count       int64
}

// DailyTotal 單日扣帳總額 (報表用)
type DailyTotal struct {
	Date       string
	DebitTotal int64
}
