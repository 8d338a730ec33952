package service

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"go.uber.org/zap"
)

// WalletService ведёт кошельки и журнал операций. Каждое изменение
// баланса - двойная запись: обновление кэша баланса и неизменяемая
// запись журнала в одной транзакции.
type WalletService struct {
	tx      TxManager
	wallets WalletStore
	logger  *zap.Logger
}

func NewWalletService(tx TxManager, wallets WalletStore, logger *zap.Logger) *WalletService {
	return &WalletService{
		tx:      tx,
		wallets: wallets,
		logger:  logger,
	}
}

// EnsureWallet возвращает кошелёк пользователя, создавая его при первом обращении
func (s *WalletService) EnsureWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	if wallet != nil {
		return wallet, nil
	}

	wallet = &model.Wallet{UserID: userID}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	return wallet, nil
}

// Balance возвращает текущий баланс пользователя
func (s *WalletService) Balance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get wallet: %w", err)
	}
	if wallet == nil {
		return 0, ErrWalletNotFound
	}
	return wallet.BalanceCents, nil
}

// TopUp пополняет баланс пользователя
func (s *WalletService) TopUp(ctx context.Context, userID, amountCents int64) error {
	return s.apply(ctx, userID, amountCents, model.TransactionTypeTopup, nil)
}

// Deduct списывает оплату занятия. Проверка баланса и запись идут под
// блокировкой строки кошелька: списание в минус невозможно даже при
// конкурентных операциях.
func (s *WalletService) Deduct(ctx context.Context, userID, amountCents, lessonID int64) error {
	err := s.apply(ctx, userID, -amountCents, model.TransactionTypeLessonPayment, &lessonID)
	if err != nil {
		return err
	}

	s.logger.Info("Wallet deducted",
		zap.Int64("user_id", userID),
		zap.Int64("amount_cents", amountCents),
		zap.Int64("lesson_id", lessonID),
	)

	return nil
}

// Refund возвращает деньги на кошелёк. Запись журнала создаётся всегда,
// даже при нулевой сумме - для полноты аудита.
func (s *WalletService) Refund(ctx context.Context, userID, amountCents, lessonID int64) error {
	err := s.apply(ctx, userID, amountCents, model.TransactionTypeRefund, &lessonID)
	if err != nil {
		return err
	}

	s.logger.Info("Wallet refunded",
		zap.Int64("user_id", userID),
		zap.Int64("amount_cents", amountCents),
		zap.Int64("lesson_id", lessonID),
	)

	return nil
}

// AdminRefund возврат, проведённый администратором
func (s *WalletService) AdminRefund(ctx context.Context, userID, amountCents, lessonID int64) error {
	return s.apply(ctx, userID, amountCents, model.TransactionTypeAdminRefund, &lessonID)
}

// CreditEarnings зачисляет заработок учителя при расчёте занятия
func (s *WalletService) CreditEarnings(ctx context.Context, userID, amountCents, lessonID int64) error {
	err := s.apply(ctx, userID, amountCents, model.TransactionTypeEarnings, &lessonID)
	if err != nil {
		return err
	}

	s.logger.Info("Teacher earnings credited",
		zap.Int64("user_id", userID),
		zap.Int64("amount_cents", amountCents),
		zap.Int64("lesson_id", lessonID),
	)

	return nil
}

// Reconcile сверяет кэш баланса с суммой журнала
func (s *WalletService) Reconcile(ctx context.Context, userID int64) (bool, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get wallet: %w", err)
	}
	if wallet == nil {
		return false, ErrWalletNotFound
	}

	sum, err := s.wallets.SumTransactions(ctx, wallet.ID)
	if err != nil {
		return false, fmt.Errorf("sum transactions: %w", err)
	}

	if sum != wallet.BalanceCents {
		s.logger.Error("Wallet balance mismatch",
			zap.Int64("user_id", userID),
			zap.Int64("balance_cents", wallet.BalanceCents),
			zap.Int64("transactions_sum", sum),
		)
		return false, nil
	}

	return true, nil
}

// apply применяет подписанное изменение баланса вместе с записью журнала.
// amountCents со знаком: списание < 0, пополнение > 0.
func (s *WalletService) apply(ctx context.Context, userID, amountCents int64, txType model.TransactionType, lessonID *int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("get wallet for update: %w", err)
		}
		if wallet == nil {
			return ErrWalletNotFound
		}

		newBalance := wallet.BalanceCents + amountCents
		if newBalance < 0 {
			return ErrInsufficientCredit
		}

		if err := s.wallets.UpdateBalance(ctx, wallet.ID, newBalance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		record := &model.CreditTransaction{
			WalletID:    wallet.ID,
			Type:        txType,
			AmountCents: amountCents,
			LessonID:    lessonID,
		}
		if err := s.wallets.CreateTransaction(ctx, record); err != nil {
			return fmt.Errorf("create transaction record: %w", err)
		}

		return nil
	})
}
