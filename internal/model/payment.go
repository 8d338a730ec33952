package model

import "time"

type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCard   PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded" // полный или частичный возврат
)

// Payment одна запись на каждое движение денег по занятию.
// Ведётся отдельно от кошелька - для возвратов и аудита.
type Payment struct {
	ID            int64         `json:"id"`
	LessonID      int64         `json:"lesson_id"`
	PayerID       int64         `json:"payer_id"`
	Method        PaymentMethod `json:"method"`
	AmountCents   int64         `json:"amount_cents"`
	RefundedCents int64         `json:"refunded_cents"`
	Status        PaymentStatus `json:"status"`
	ExternalRef   *string       `json:"external_ref"` // ссылка на charge у платёжного шлюза
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
