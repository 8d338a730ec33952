package repository

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	*base.Repository
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{Repository: base.NewRepository(pool)}
}

const paymentColumns = `
	id, lesson_id, payer_id, method, amount_cents, refunded_cents, status,
	external_ref, created_at, updated_at
`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.LessonID,
		&p.PayerID,
		&p.Method,
		&p.AmountCents,
		&p.RefundedCents,
		&p.Status,
		&p.ExternalRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create создаёт запись о платеже
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (lesson_id, payer_id, method, amount_cents, status, external_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, refunded_cents, created_at, updated_at
	`

	err := r.DB(ctx).QueryRow(
		ctx, query,
		p.LessonID,
		p.PayerID,
		p.Method,
		p.AmountCents,
		p.Status,
		p.ExternalRef,
	).Scan(&p.ID, &p.RefundedCents, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByExternalRef получает платёж по ссылке на внешний charge.
// Уникальность external_ref делает подтверждение карты идемпотентным.
func (r *PaymentRepository) GetByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_ref = $1`

	p, err := scanPayment(r.DB(ctx).QueryRow(ctx, query, externalRef))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by external ref: %w", err)
	}

	return p, nil
}

// GetByLessonAndPayer получает платёж плательщика по занятию
func (r *PaymentRepository) GetByLessonAndPayer(ctx context.Context, lessonID, payerID int64) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE lesson_id = $1 AND payer_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.DB(ctx).QueryRow(ctx, query, lessonID, payerID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by lesson and payer: %w", err)
	}

	return p, nil
}

// ApplyRefund отражает возврат на платеже
func (r *PaymentRepository) ApplyRefund(ctx context.Context, id, refundedCents int64) error {
	query := `
		UPDATE payments
		SET refunded_cents = refunded_cents + $1, status = $2, updated_at = now()
		WHERE id = $3
	`

	result, err := r.DB(ctx).Exec(ctx, query, refundedCents, model.PaymentStatusRefunded, id)
	if err != nil {
		return fmt.Errorf("apply refund to payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment not found")
	}

	return nil
}
