package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edumarket/grouplessons/internal/model"
)

// memStore реализует все интерфейсы хранилищ поверх карт в памяти.
// WithinTx снимает снимок состояния и откатывает его при ошибке,
// воспроизводя атомарность настоящей транзакции.
type memStore struct {
	txMu sync.Mutex // сериализует транзакции
	mu   sync.Mutex // защищает данные

	lessons      map[int64]model.Lesson
	participants map[int64]model.Participant
	invitations  map[string]model.Invitation
	payments     map[int64]model.Payment
	wallets      map[int64]model.Wallet // по user_id
	transactions []model.CreditTransaction
	progress     map[int64]model.StudentProgress
	users        map[int64]model.User

	nextID int64
	now    time.Time
}

type memTxKey struct{}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		lessons:      make(map[int64]model.Lesson),
		participants: make(map[int64]model.Participant),
		invitations:  make(map[string]model.Invitation),
		payments:     make(map[int64]model.Payment),
		wallets:      make(map[int64]model.Wallet),
		progress:     make(map[int64]model.StudentProgress),
		users:        make(map[int64]model.User),
		now:          now,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

type memSnapshot struct {
	lessons      map[int64]model.Lesson
	participants map[int64]model.Participant
	invitations  map[string]model.Invitation
	payments     map[int64]model.Payment
	wallets      map[int64]model.Wallet
	transactions []model.CreditTransaction
	progress     map[int64]model.StudentProgress
	nextID       int64
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memSnapshot{
		lessons:      make(map[int64]model.Lesson, len(m.lessons)),
		participants: make(map[int64]model.Participant, len(m.participants)),
		invitations:  make(map[string]model.Invitation, len(m.invitations)),
		payments:     make(map[int64]model.Payment, len(m.payments)),
		wallets:      make(map[int64]model.Wallet, len(m.wallets)),
		transactions: append([]model.CreditTransaction(nil), m.transactions...),
		progress:     make(map[int64]model.StudentProgress, len(m.progress)),
		nextID:       m.nextID,
	}
	for k, v := range m.lessons {
		snap.lessons[k] = v
	}
	for k, v := range m.participants {
		snap.participants[k] = v
	}
	for k, v := range m.invitations {
		snap.invitations[k] = v
	}
	for k, v := range m.payments {
		snap.payments[k] = v
	}
	for k, v := range m.wallets {
		snap.wallets[k] = v
	}
	for k, v := range m.progress {
		snap.progress[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lessons = snap.lessons
	m.participants = snap.participants
	m.invitations = snap.invitations
	m.payments = snap.payments
	m.wallets = snap.wallets
	m.transactions = snap.transactions
	m.progress = snap.progress
	m.nextID = snap.nextID
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// --- LessonStore ---

func (m *memStore) Create(ctx context.Context, lesson *model.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson.ID = m.id()
	lesson.CreatedAt = m.now
	lesson.UpdatedAt = m.now
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson, ok := m.lessons[id]
	if !ok {
		return nil, nil
	}
	return &lesson, nil
}

func (m *memStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Lesson, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) UpdateGroupStatus(ctx context.Context, id int64, status model.GroupStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson, ok := m.lessons[id]
	if !ok {
		return fmt.Errorf("lesson not found")
	}
	lesson.GroupStatus = &status
	m.lessons[id] = lesson
	return nil
}

func (m *memStore) Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson, ok := m.lessons[id]
	if !ok {
		return fmt.Errorf("lesson not found")
	}
	status := model.GroupStatusCanceled
	lesson.Status = model.LessonStatusCanceled
	lesson.GroupStatus = &status
	lesson.CanceledBy = &canceledBy
	m.lessons[id] = lesson
	return nil
}

func (m *memStore) ConvertToPrivate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson, ok := m.lessons[id]
	if !ok {
		return fmt.Errorf("lesson not found")
	}
	lesson.IsGroup = false
	lesson.MaxParticipants = 1
	status := model.GroupStatusConvertedPrivate
	lesson.GroupStatus = &status
	m.lessons[id] = lesson
	return nil
}

func (m *memStore) StoreSettlement(ctx context.Context, id int64, collected, commission, earnings int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lesson, ok := m.lessons[id]
	if !ok {
		return fmt.Errorf("lesson not found")
	}
	lesson.CollectedCents = &collected
	lesson.CommissionCents = &commission
	lesson.EarningsCents = &earnings
	lesson.EarningsCredited = true
	lesson.Status = model.LessonStatusCompleted
	m.lessons[id] = lesson
	return nil
}

func (m *memStore) ListOpenPastJoinDeadline(ctx context.Context, deadlineOffset time.Duration, now time.Time) ([]*model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Lesson
	for _, lesson := range m.lessons {
		if !lesson.IsGroup || lesson.GroupStatus == nil || *lesson.GroupStatus != model.GroupStatusOpen {
			continue
		}
		if !lesson.StartTime.After(now.Add(deadlineOffset)) {
			l := lesson
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m *memStore) ListFinishedUnsettled(ctx context.Context, now time.Time) ([]*model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Lesson
	for _, lesson := range m.lessons {
		if lesson.EarningsCredited || lesson.Status == model.LessonStatusCanceled {
			continue
		}
		if !lesson.EndTime().After(now) {
			l := lesson
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m *memStore) HasOverlapping(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.participants {
		if p.StudentID != studentID || p.Status != model.ParticipantStatusActive {
			continue
		}
		lesson := m.lessons[p.LessonID]
		if lesson.Status == model.LessonStatusCanceled || lesson.Status == model.LessonStatusCompleted {
			continue
		}
		if lesson.StartTime.Before(end) && lesson.EndTime().After(start) {
			return true, nil
		}
	}
	return false, nil
}

// --- ParticipantStore ---

func (m *memStore) CreateParticipant(ctx context.Context, p *model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.id()
	p.CreatedAt = m.now
	p.UpdatedAt = m.now
	m.participants[p.ID] = *p
	return nil
}

func (m *memStore) GetActiveByLessonAndStudent(ctx context.Context, lessonID, studentID int64) (*model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.participants {
		if p.LessonID == lessonID && p.StudentID == studentID && p.Status == model.ParticipantStatusActive {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountActiveByLesson(ctx context.Context, lessonID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, p := range m.participants {
		if p.LessonID == lessonID && p.Status == model.ParticipantStatusActive {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListActiveByLesson(ctx context.Context, lessonID int64) ([]*model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Participant
	for _, p := range m.participants {
		if p.LessonID == lessonID && p.Status == model.ParticipantStatusActive {
			found := p
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memStore) CancelParticipant(ctx context.Context, id int64, canceledBy model.CanceledBy, refundPercent int, refundedCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok || p.Status != model.ParticipantStatusActive {
		return fmt.Errorf("participant not found or already canceled")
	}
	now := m.now
	p.Status = model.ParticipantStatusCanceled
	p.CanceledBy = &canceledBy
	p.RefundPercent = &refundPercent
	p.RefundedCents = &refundedCents
	p.CanceledAt = &now
	m.participants[id] = p
	return nil
}

func (m *memStore) UpdatePricePaid(ctx context.Context, id int64, priceCents, commissionCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return fmt.Errorf("participant not found")
	}
	p.PricePaidCents = priceCents
	p.CommissionCents = commissionCents
	m.participants[id] = p
	return nil
}

func (m *memStore) MarkProgressAdvanced(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return false, fmt.Errorf("participant not found")
	}
	if p.ProgressAdvancedAt != nil {
		return false, nil
	}
	now := m.now
	p.ProgressAdvancedAt = &now
	m.participants[id] = p
	return true, nil
}

// --- InvitationStore ---

func (m *memStore) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv.ID = m.id()
	inv.CreatedAt = m.now
	m.invitations[inv.Token] = *inv
	return nil
}

func (m *memStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[token]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

// --- PaymentStore ---

func (m *memStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.id()
	p.CreatedAt = m.now
	p.UpdatedAt = m.now
	m.payments[p.ID] = *p
	return nil
}

func (m *memStore) GetByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.ExternalRef != nil && *p.ExternalRef == externalRef {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByLessonAndPayer(ctx context.Context, lessonID, payerID int64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *model.Payment
	for _, p := range m.payments {
		if p.LessonID != lessonID || p.PayerID != payerID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			found := p
			latest = &found
		}
	}
	return latest, nil
}

func (m *memStore) ApplyRefund(ctx context.Context, id, refundedCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.RefundedCents += refundedCents
	p.Status = model.PaymentStatusRefunded
	m.payments[id] = p
	return nil
}

// --- WalletStore ---

func (m *memStore) CreateWallet(ctx context.Context, wallet *model.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet.ID = m.id()
	wallet.CreatedAt = m.now
	wallet.UpdatedAt = m.now
	m.wallets[wallet.UserID] = *wallet
	return nil
}

func (m *memStore) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &wallet, nil
}

func (m *memStore) GetByUserIDForUpdate(ctx context.Context, userID int64) (*model.Wallet, error) {
	return m.GetByUserID(ctx, userID)
}

func (m *memStore) UpdateBalance(ctx context.Context, walletID, balanceCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, w := range m.wallets {
		if w.ID == walletID {
			w.BalanceCents = balanceCents
			m.wallets[userID] = w
			return nil
		}
	}
	return fmt.Errorf("wallet not found")
}

func (m *memStore) CreateTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx.ID = m.id()
	tx.CreatedAt = m.now
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *memStore) SumTransactions(ctx context.Context, walletID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, tx := range m.transactions {
		if tx.WalletID == walletID {
			sum += tx.AmountCents
		}
	}
	return sum, nil
}

// --- ProgressStore ---

func (m *memStore) IncrementCompleted(ctx context.Context, studentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.progress[studentID]
	if !ok {
		p = model.StudentProgress{ID: m.id(), StudentID: studentID}
	}
	p.LessonsCompleted++
	p.UpdatedAt = m.now
	m.progress[studentID] = p
	return nil
}

// --- UserStore ---

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *memStore) addUser(user model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.id()
	user.CreatedAt = m.now
	m.users[user.ID] = user
	return user
}

func (m *memStore) addWallet(userID, balanceCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wallets[userID] = model.Wallet{
		ID:           m.id(),
		UserID:       userID,
		BalanceCents: balanceCents,
		CreatedAt:    m.now,
		UpdatedAt:    m.now,
	}
}

func (m *memStore) walletBalance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[userID].BalanceCents
}

func (m *memStore) transactionCount(walletUserID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	walletID := m.wallets[walletUserID].ID
	count := 0
	for _, tx := range m.transactions {
		if tx.WalletID == walletID {
			count++
		}
	}
	return count
}

// --- Адаптеры под интерфейсы хранилищ ---
// memStore сам реализует LessonStore, ProgressStore, TxManager и
// OverlapChecker; остальные интерфейсы получают тонкие обёртки,
// разводящие совпадающие имена методов.

type memParticipants struct{ s *memStore }

func (a memParticipants) Create(ctx context.Context, p *model.Participant) error {
	return a.s.CreateParticipant(ctx, p)
}
func (a memParticipants) GetActiveByLessonAndStudent(ctx context.Context, lessonID, studentID int64) (*model.Participant, error) {
	return a.s.GetActiveByLessonAndStudent(ctx, lessonID, studentID)
}
func (a memParticipants) CountActiveByLesson(ctx context.Context, lessonID int64) (int, error) {
	return a.s.CountActiveByLesson(ctx, lessonID)
}
func (a memParticipants) ListActiveByLesson(ctx context.Context, lessonID int64) ([]*model.Participant, error) {
	return a.s.ListActiveByLesson(ctx, lessonID)
}
func (a memParticipants) Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy, refundPercent int, refundedCents int64) error {
	return a.s.CancelParticipant(ctx, id, canceledBy, refundPercent, refundedCents)
}
func (a memParticipants) UpdatePricePaid(ctx context.Context, id int64, priceCents, commissionCents int64) error {
	return a.s.UpdatePricePaid(ctx, id, priceCents, commissionCents)
}
func (a memParticipants) MarkProgressAdvanced(ctx context.Context, id int64) (bool, error) {
	return a.s.MarkProgressAdvanced(ctx, id)
}

type memInvitations struct{ s *memStore }

func (a memInvitations) Create(ctx context.Context, inv *model.Invitation) error {
	return a.s.CreateInvitation(ctx, inv)
}
func (a memInvitations) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	return a.s.GetByToken(ctx, token)
}

type memPayments struct{ s *memStore }

func (a memPayments) Create(ctx context.Context, p *model.Payment) error {
	return a.s.CreatePayment(ctx, p)
}
func (a memPayments) GetByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error) {
	return a.s.GetByExternalRef(ctx, externalRef)
}
func (a memPayments) GetByLessonAndPayer(ctx context.Context, lessonID, payerID int64) (*model.Payment, error) {
	return a.s.GetByLessonAndPayer(ctx, lessonID, payerID)
}
func (a memPayments) ApplyRefund(ctx context.Context, id, refundedCents int64) error {
	return a.s.ApplyRefund(ctx, id, refundedCents)
}

type memWallets struct{ s *memStore }

func (a memWallets) Create(ctx context.Context, wallet *model.Wallet) error {
	return a.s.CreateWallet(ctx, wallet)
}
func (a memWallets) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	return a.s.GetByUserID(ctx, userID)
}
func (a memWallets) GetByUserIDForUpdate(ctx context.Context, userID int64) (*model.Wallet, error) {
	return a.s.GetByUserIDForUpdate(ctx, userID)
}
func (a memWallets) UpdateBalance(ctx context.Context, walletID, balanceCents int64) error {
	return a.s.UpdateBalance(ctx, walletID, balanceCents)
}
func (a memWallets) CreateTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	return a.s.CreateTransaction(ctx, tx)
}
func (a memWallets) SumTransactions(ctx context.Context, walletID int64) (int64, error) {
	return a.s.SumTransactions(ctx, walletID)
}

type memUsers struct{ s *memStore }

func (a memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return a.s.GetUserByID(ctx, id)
}

// --- Коллабораторы ---

type fakeCharges struct {
	mu       sync.Mutex
	paid     map[string]bool
	confirms int
}

func newFakeCharges() *fakeCharges {
	return &fakeCharges{paid: make(map[string]bool)}
}

func (f *fakeCharges) preauthorize(chargeRef string, paid bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[chargeRef] = paid
}

func (f *fakeCharges) CreateCharge(ctx context.Context, payerID, amountCents int64, description string) (string, error) {
	ref := fmt.Sprintf("charge-%d-%d", payerID, amountCents)
	f.preauthorize(ref, true)
	return ref, nil
}

func (f *fakeCharges) ConfirmCharge(ctx context.Context, chargeRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms++
	return f.paid[chargeRef], nil
}

type fakeInvoices struct {
	mu    sync.Mutex
	count int
}

func (f *fakeInvoices) Generate(ctx context.Context, payerID, teacherID, lessonID, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturedEvents) Publish(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturedEvents) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
