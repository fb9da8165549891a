package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrUnknownTransactionKind 未知的交易類型
	ErrUnknownTransactionKind = errors.New("unknown transaction kind")

	// ErrNegativeBalance 餘額變為負數 (正常加鎖下不應該發生)
	ErrNegativeBalance = errors.New("balance went negative")

	// ErrStoreFailure 儲存層失敗 (I/O、連線、約束錯誤)
	// 基礎設施問題，與業務錯誤區分，呼叫端應重試或告警
	ErrStoreFailure = errors.New("ledger store failure")
)
