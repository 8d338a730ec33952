package model

import "time"

type TransactionType string

const (
	TransactionTypeTopup         TransactionType = "topup"
	TransactionTypeLessonPayment TransactionType = "lesson_payment"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypeAdminRefund   TransactionType = "admin_refund"
	TransactionTypeEarnings      TransactionType = "earnings" // выплата учителю при расчёте
)

// Wallet кошелёк пользователя. Баланс - кэш, источник правды -
// сумма записей credit_transactions; обновляются в одной транзакции.
type Wallet struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"` // всегда >= 0
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreditTransaction неизменяемая запись об изменении баланса.
// AmountCents со знаком: списание < 0, пополнение/возврат > 0.
type CreditTransaction struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"wallet_id"`
	Type        TransactionType `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	LessonID    *int64          `json:"lesson_id"`
	PaymentID   *int64          `json:"payment_id"`
	CreatedAt   time.Time       `json:"created_at"`
}
