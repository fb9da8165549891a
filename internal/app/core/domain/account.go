package domain

// Account 帳戶，只保留實體化後的當前餘額
// 不變式: Balance >= 0
type Account struct {
	ID      int64
	Balance int64
}

func NewAccount(id int64, balance int64) *Account {
	return &Account{
		ID:      id,
		Balance: balance,
	}
}

// Credit 入帳
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	a.Balance = a.Balance + amount
	return nil
}

// Debit 扣帳
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	if a.Balance < amount {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance - amount
	return nil
}
