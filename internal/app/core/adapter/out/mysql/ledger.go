package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        int64 `gorm:"primaryKey"`
	Balance   int64
	CreatedAt int64 `gorm:"autoCreateTime:milli"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RefID       []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.Transaction.RefID
	AccountID   int64  `gorm:"index:idx_account_created,priority:1"`
	Amount      int64
	Kind        uint8
	Status      uint8
	Description string `gorm:"type:varchar(255)"`
	CreatedAt   int64  `gorm:"index:idx_account_created,priority:2;autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() domain.Transaction {
	tran := domain.Transaction{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Amount:      t.Amount,
		CreatedAt:   t.CreatedAt,
		Description: t.Description,
		Kind:        domain.TransactionKind(t.Kind),
		Status:      domain.TransactionStatus(t.Status),
	}
	copy(tran.RefID[:], t.RefID)
	return tran
}

// storeFailure 把基礎設施錯誤統一包成 domain.ErrStoreFailure
func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}

// errDuplicateRefID 內部信號：插入時才發現 ref_id 已存在 (並發重試先寫入)
// 用來回滾本次的餘額更新，改走重放路徑
var errDuplicateRefID = errors.New("duplicate ref_id")

type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// CreateAccount 建立帳戶，初始餘額為 0
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account := sqlAccount{ID: accountID}
	err := ledger.client.DB().WithContext(ctx).Create(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, storeFailure(err)
	}
	return domain.NewAccount(accountID, 0), nil
}

// DeleteAccount 刪除帳戶並連帶刪除其交易紀錄 (同一個 DB Transaction)
func (ledger *MySQLLedger) DeleteAccount(ctx context.Context, accountID int64) error {
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&sqlTransaction{}).Error; err != nil {
			return storeFailure(err)
		}
		result := tx.Where("id = ?", accountID).Delete(&sqlAccount{})
		if result.Error != nil {
			return storeFailure(result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrAccountNotFound
		}
		return nil
	})
	return err
}

// GetAccountBalance 取得帳戶餘額
func (ledger *MySQLLedger) GetAccountBalance(ctx context.Context, accountID int64) (int64, error) {
	var account sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, storeFailure(err)
	}
	return account.Balance, nil
}

// LoadAllAccounts 載入所有帳戶
func (ledger *MySQLLedger) LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error) {
	var accounts []sqlAccount
	if err := ledger.client.DB().WithContext(ctx).Find(&accounts).Error; err != nil {
		return nil, storeFailure(err)
	}
	out := make(map[int64]*domain.Account, len(accounts))
	for _, account := range accounts {
		out[account.ID] = domain.NewAccount(account.ID, account.Balance)
	}
	return out, nil
}

// AppendTransaction 持久化一筆交易並更新餘額
// 帳戶列使用悲觀鎖 (SELECT ... FOR UPDATE)，guard 在鎖持有期間執行，
// 交易列與餘額更新在同一個 DB Transaction 內，一起提交或一起回滾
func (ledger *MySQLLedger) AppendTransaction(ctx context.Context, tran *domain.Transaction, guard usecase.BalanceGuard) (int64, error) {
	var newBalance int64
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先檢查是否已有這筆交易紀錄 (Idempotency)
		var existing sqlTransaction
		err := tx.Where("ref_id = ?", tran.RefID[:]).First(&existing).Error
		if err == nil {
			return ledger.replayExisting(tx, tran, &existing, &newBalance)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeFailure(err)
		}

		// 鎖定帳戶列 悲觀鎖
		var account sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", tran.AccountID).
			First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return storeFailure(err)
		}

		if guard != nil {
			if err := guard(account.Balance); err != nil {
				return err
			}
		}

		switch tran.Kind {
		case domain.TransactionKindCredit:
			account.Balance += tran.Amount
		case domain.TransactionKindDebit:
			account.Balance -= tran.Amount
		default:
			return domain.ErrUnknownTransactionKind
		}

		if err := tx.Model(&sqlAccount{}).
			Where("id = ?", account.ID).
			Update("balance", account.Balance).Error; err != nil {
			return storeFailure(err)
		}

		record := sqlTransaction{
			RefID:       tran.RefID[:],
			AccountID:   tran.AccountID,
			Amount:      tran.Amount,
			Kind:        uint8(tran.Kind),
			Status:      uint8(tran.Status),
			Description: tran.Description,
		}
		if err := tx.Create(&record).Error; err != nil {
			// 兩個帶同樣 ref_id 的請求同時通過了前面的存在檢查：
			// 輸的那邊會在這裡撞上 uniqueIndex，必須連同餘額更新一起回滾
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateRefID
			}
			return storeFailure(err)
		}
		tran.ID = record.ID
		tran.CreatedAt = record.CreatedAt
		newBalance = account.Balance
		return nil
	})
	if errors.Is(err, errDuplicateRefID) {
		// 並發的重試先寫入了，改走重放路徑 (No-op 成功)
		err = ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing sqlTransaction
			if err := tx.Where("ref_id = ?", tran.RefID[:]).First(&existing).Error; err != nil {
				return storeFailure(err)
			}
			return ledger.replayExisting(tx, tran, &existing, &newBalance)
		})
	}
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// replayExisting 處理重複 ref_id 的重放：
// 把 tran 回填成當初寫入的那筆交易，回傳帳戶當前餘額，不做任何變更
func (ledger *MySQLLedger) replayExisting(tx *gorm.DB, tran *domain.Transaction, existing *sqlTransaction, newBalance *int64) error {
	var account sqlAccount
	if err := tx.Where("id = ?", existing.AccountID).First(&account).Error; err != nil {
		return storeFailure(err)
	}
	*tran = existing.toDomain()
	*newBalance = account.Balance
	return nil
}

// ListTransactions 依建立時間由新到舊列出交易
func (ledger *MySQLLedger) ListTransactions(ctx context.Context, accountID int64, kind domain.TransactionKind, offset, limit int) ([]domain.Transaction, error) {
	// 確認帳戶存在
	if _, err := ledger.GetAccountBalance(ctx, accountID); err != nil {
		return nil, err
	}

	query := ledger.client.DB().WithContext(ctx).Where("account_id = ?", accountID)
	if kind != 0 {
		query = query.Where("kind = ?", uint8(kind))
	}

	var records []sqlTransaction
	err := query.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, storeFailure(err)
	}

	out := make([]domain.Transaction, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

// Aggregate 彙總 [since, until) 區間內已完成的交易
// 加總直接在 SQL 裡做，避免把交易列整批載入記憶體
func (ledger *MySQLLedger) Aggregate(ctx context.Context, accountID int64, since, until int64) (*domain.Summary, error) {
	if _, err := ledger.GetAccountBalance(ctx, accountID); err != nil {
		return nil, err
	}

	query := ledger.client.DB().WithContext(ctx).Model(&sqlTransaction{}).
		Where("account_id = ? AND status = ? AND created_at >= ?",
			accountID, uint8(domain.TransactionStatusCompleted), since)
	if until > 0 {
		query = query.Where("created_at < ?", until)
	}

	var row struct {
		CreditTotal int64
		DebitTotal  int64
		Count       int64
	}
	err := query.Select(
		"COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0) AS credit_total, "+
			"COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0) AS debit_total, "+
			"COUNT(*) AS count",
		uint8(domain.TransactionKindCredit), uint8(domain.TransactionKindDebit)).
		Scan(&row).Error
	if err != nil {
		return nil, storeFailure(err)
	}

	return &domain.Summary{
		CreditTotal: row.CreditTotal,
		DebitTotal:  row.DebitTotal,
		Count:       row.Count,
	}, nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
