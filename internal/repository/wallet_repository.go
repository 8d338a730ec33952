package repository

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository struct {
	*base.Repository
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{Repository: base.NewRepository(pool)}
}

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create создаёт кошелёк пользователя
func (r *WalletRepository) Create(ctx context.Context, wallet *model.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, balance_cents)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := r.DB(ctx).QueryRow(ctx, query, wallet.UserID, wallet.BalanceCents).
		Scan(&wallet.ID, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}

	return nil
}

// GetByUserID получает кошелёк пользователя
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	query := `
		SELECT id, user_id, balance_cents, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	wallet, err := scanWallet(r.DB(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}

	return wallet, nil
}

// GetByUserIDForUpdate получает кошелёк с блокировкой строки.
// Проверка баланса и списание должны идти под одной блокировкой,
// иначе два конкурентных списания могут увести баланс в минус.
func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID int64) (*model.Wallet, error) {
	query := `
		SELECT id, user_id, balance_cents, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`

	wallet, err := scanWallet(r.DB(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}

	return wallet, nil
}

// UpdateBalance обновляет кэш баланса
func (r *WalletRepository) UpdateBalance(ctx context.Context, walletID, balanceCents int64) error {
	query := `
		UPDATE wallets
		SET balance_cents = $1, updated_at = now()
		WHERE id = $2
	`

	result, err := r.DB(ctx).Exec(ctx, query, balanceCents, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found")
	}

	return nil
}

// CreateTransaction добавляет неизменяемую запись в журнал
func (r *WalletRepository) CreateTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (wallet_id, type, amount_cents, lesson_id, payment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.DB(ctx).QueryRow(
		ctx, query,
		tx.WalletID,
		tx.Type,
		tx.AmountCents,
		tx.LessonID,
		tx.PaymentID,
	).Scan(&tx.ID, &tx.CreatedAt)

	if err != nil {
		return fmt.Errorf("create credit transaction: %w", err)
	}

	return nil
}

// SumTransactions возвращает сумму журнала кошелька.
// Используется для сверки с кэшем баланса.
func (r *WalletRepository) SumTransactions(ctx context.Context, walletID int64) (int64, error) {
	query := `
		SELECT coalesce(sum(amount_cents), 0)
		FROM credit_transactions
		WHERE wallet_id = $1
	`

	var sum int64
	err := r.DB(ctx).QueryRow(ctx, query, walletID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum credit transactions: %w", err)
	}

	return sum, nil
}
