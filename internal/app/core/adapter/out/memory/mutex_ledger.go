package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// walOp WAL 紀錄的操作類型
type walOp uint8

const (
	walOpCreateAccount walOp = 1
	walOpDeleteAccount walOp = 2
	walOpAppend        walOp = 3
)

// walEntry WAL 的一筆紀錄
// 帳戶的建立/刪除也要記錄，重放時交易才有對應的帳戶
type walEntry struct {
	Op        walOp
	AccountID int64
	Tran      *domain.Transaction `json:",omitempty"`
}

// MutexLedger 是一個使用 RWMutex 實現的帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	history: 各帳戶的交易紀錄，依建立順序 Append
//	mu: RWMutex 用於保護以上資料
//	processed: 已處理過的交易，依 RefID 索引
//	wal: Write-Ahead Log 實例 (可為 nil，純記憶體模式)
type MutexLedger struct {
	accounts map[int64]*domain.Account
	history  map[int64][]*domain.Transaction
	mu       sync.RWMutex
	// processed: RefID 對應已寫入的交易，重放時原樣回傳
	processed map[uuid.UUID]*domain.Transaction
	wal       *wal.WAL
	nextID    int64
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	accounts: 初始帳戶資料 Map (可為 nil)
//	journal: Write-Ahead Log 實例 (可為 nil)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(accounts map[int64]*domain.Account, journal *wal.WAL) (*MutexLedger, error) {
	if accounts == nil {
		accounts = make(map[int64]*domain.Account)
	}
	ledger := &MutexLedger{
		accounts:  accounts,
		history:   make(map[int64][]*domain.Transaction),
		mu:        sync.RWMutex{},
		processed: make(map[uuid.UUID]*domain.Transaction),
		wal:       journal,
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		return m.applyRecoverEntry(&entry)
	})
}

// applyRecoverEntry 重放單筆 WAL 紀錄 (不寫入 WAL)
func (m *MutexLedger) applyRecoverEntry(entry *walEntry) error {
	switch entry.Op {
	case walOpCreateAccount:
		m.accounts[entry.AccountID] = domain.NewAccount(entry.AccountID, 0)
		return nil
	case walOpDeleteAccount:
		delete(m.accounts, entry.AccountID)
		delete(m.history, entry.AccountID)
		return nil
	case walOpAppend:
		tran := entry.Tran
		if err := m.apply(tran); err != nil {
			return err
		}
		m.history[tran.AccountID] = append(m.history[tran.AccountID], tran)
		m.processed[tran.RefID] = tran
		if tran.ID > m.nextID {
			m.nextID = tran.ID
		}
		return nil
	}
	return fmt.Errorf("unknown wal op: %d", entry.Op)
}

// apply 把一筆交易的金額變化套用到帳戶餘額
func (m *MutexLedger) apply(tran *domain.Transaction) error {
	account, ok := m.accounts[tran.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	switch tran.Kind {
	case domain.TransactionKindCredit:
		return account.Credit(tran.Amount)
	case domain.TransactionKindDebit:
		return account.Debit(tran.Amount)
	}
	return domain.ErrUnknownTransactionKind
}

// CreateAccount 建立帳戶，初始餘額為 0
func (m *MutexLedger) CreateAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if m.wal != nil {
		if err := m.wal.Write(&walEntry{Op: walOpCreateAccount, AccountID: accountID}); err != nil {
			return nil, fmt.Errorf("%w: wal write: %v", domain.ErrStoreFailure, err)
		}
	}
	account := domain.NewAccount(accountID, 0)
	m.accounts[accountID] = account
	return account, nil
}

// DeleteAccount 刪除帳戶並連帶刪除其交易紀錄
func (m *MutexLedger) DeleteAccount(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; !ok {
		return domain.ErrAccountNotFound
	}
	if m.wal != nil {
		if err := m.wal.Write(&walEntry{Op: walOpDeleteAccount, AccountID: accountID}); err != nil {
			return fmt.Errorf("%w: wal write: %v", domain.ErrStoreFailure, err)
		}
	}
	delete(m.accounts, accountID)
	delete(m.history, accountID)
	return nil
}

// GetAccountBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetAccountBalance(ctx context.Context, accountID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return account.Balance, nil
}

// LoadAllAccounts 載入系統所有帳戶資料
func (m *MutexLedger) LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts, nil
}

// AppendTransaction 持久化一筆交易並更新餘額
//
// guard 在持有鎖時執行，讀取-檢查-寫入對同一帳戶因此是可序列化的。
// 任何一步失敗都不會留下紀錄：
// guard 拒絕 → 不套用也不寫 WAL；WAL 寫入失敗 → 餘額回復原值
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易物件 (ID 與 CreatedAt 由本方法分配)
//	guard: 餘額檢查 (可為 nil)
//
// 回傳:
//
//	int64: 更新後的餘額
//	error: 處理錯誤
func (m *MutexLedger) AppendTransaction(ctx context.Context, tran *domain.Transaction, guard usecase.BalanceGuard) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[tran.AccountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	// Idempotency Check: 重放時回填原本寫入的交易內容
	if stored, seen := m.processed[tran.RefID]; seen {
		*tran = *stored
		return account.Balance, nil
	}
	if guard != nil {
		if err := guard(account.Balance); err != nil {
			return 0, err
		}
	}

	prevBalance := account.Balance
	if err := m.apply(tran); err != nil {
		return 0, err
	}

	tran.ID = m.nextID + 1
	if tran.CreatedAt == 0 {
		tran.CreatedAt = time.Now().UnixMilli()
	}

	if m.wal != nil {
		if err := m.wal.Write(&walEntry{Op: walOpAppend, AccountID: tran.AccountID, Tran: tran}); err != nil {
			account.Balance = prevBalance
			return 0, fmt.Errorf("%w: wal write: %v", domain.ErrStoreFailure, err)
		}
	}

	m.nextID = tran.ID
	m.history[tran.AccountID] = append(m.history[tran.AccountID], tran)
	m.processed[tran.RefID] = tran
	return account.Balance, nil
}

// ListTransactions 依建立時間由新到舊列出交易
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID int64, kind domain.TransactionKind, offset, limit int) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}

	history := m.history[accountID]
	out := make([]domain.Transaction, 0, limit)
	skipped := 0
	// history 依建立順序排列，由尾端往回走即為由新到舊
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		tran := history[i]
		if kind != 0 && tran.Kind != kind {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *tran)
	}
	return out, nil
}

// Aggregate 彙總 [since, until) 區間內已完成的交易
func (m *MutexLedger) Aggregate(ctx context.Context, accountID int64, since, until int64) (*domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}

	sum := &domain.Summary{}
	for _, tran := range m.history[accountID] {
		if tran.Status != domain.TransactionStatusCompleted {
			continue
		}
		if tran.CreatedAt < since {
			continue
		}
		if until > 0 && tran.CreatedAt >= until {
			continue
		}
		switch tran.Kind {
		case domain.TransactionKindCredit:
			sum.CreditTotal += tran.Amount
		case domain.TransactionKindDebit:
			sum.DebitTotal += tran.Amount
		}
		sum.Count++
	}
	return sum, nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
