package service

import (
	"context"
	"time"

	"github.com/edumarket/grouplessons/internal/model"
)

// Интерфейсы хранилищ объявлены на стороне потребителя;
// pgx-репозитории из internal/repository реализуют их.

// TxManager выполняет fn в одной атомарной единице работы.
// Вложенные вызовы переиспользуют открытую транзакцию.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type LessonStore interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id int64) (*model.Lesson, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Lesson, error)
	UpdateGroupStatus(ctx context.Context, id int64, status model.GroupStatus) error
	Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy) error
	ConvertToPrivate(ctx context.Context, id int64) error
	StoreSettlement(ctx context.Context, id int64, collected, commission, earnings int64) error
	ListOpenPastJoinDeadline(ctx context.Context, deadlineOffset time.Duration, now time.Time) ([]*model.Lesson, error)
	ListFinishedUnsettled(ctx context.Context, now time.Time) ([]*model.Lesson, error)
}

type ParticipantStore interface {
	Create(ctx context.Context, p *model.Participant) error
	GetActiveByLessonAndStudent(ctx context.Context, lessonID, studentID int64) (*model.Participant, error)
	CountActiveByLesson(ctx context.Context, lessonID int64) (int, error)
	ListActiveByLesson(ctx context.Context, lessonID int64) ([]*model.Participant, error)
	Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy, refundPercent int, refundedCents int64) error
	UpdatePricePaid(ctx context.Context, id int64, priceCents, commissionCents int64) error
	MarkProgressAdvanced(ctx context.Context, id int64) (bool, error)
}

type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error)
	GetByLessonAndPayer(ctx context.Context, lessonID, payerID int64) (*model.Payment, error)
	ApplyRefund(ctx context.Context, id, refundedCents int64) error
}

type WalletStore interface {
	Create(ctx context.Context, wallet *model.Wallet) error
	GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, userID int64) (*model.Wallet, error)
	UpdateBalance(ctx context.Context, walletID, balanceCents int64) error
	CreateTransaction(ctx context.Context, tx *model.CreditTransaction) error
	SumTransactions(ctx context.Context, walletID int64) (int64, error)
}

type ProgressStore interface {
	IncrementCompleted(ctx context.Context, studentID int64) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Ledger операции кошелька, нужные оркестратору. Реализуется WalletService.
type Ledger interface {
	Deduct(ctx context.Context, userID, amountCents, lessonID int64) error
	Refund(ctx context.Context, userID, amountCents, lessonID int64) error
	CreditEarnings(ctx context.Context, userID, amountCents, lessonID int64) error
}
