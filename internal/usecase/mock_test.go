//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/adapter"
	"stagecall/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Adapters
// =============================

// ---- Mock CheckoutGateway ----

type MockCheckoutGateway struct {
	NameVal string

	CreateSessionFunc func(ctx context.Context, spec adapter.CheckoutSpec) (adapter.CheckoutSession, error)
	SessionStatusFunc func(ctx context.Context, sessionRef string) (adapter.SessionState, error)
}

var _ adapter.CheckoutGateway = (*MockCheckoutGateway)(nil)

func (m *MockCheckoutGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, spec adapter.CheckoutSpec) (adapter.CheckoutSession, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, spec)
	}
	ref := "cs_test_" + uuid.NewString()
	return adapter.CheckoutSession{SessionRef: ref, RedirectURL: "https://checkout.example/" + ref}, nil
}

func (m *MockCheckoutGateway) SessionStatus(ctx context.Context, sessionRef string) (adapter.SessionState, error) {
	if m.SessionStatusFunc != nil {
		return m.SessionStatusFunc(ctx, sessionRef)
	}
	return adapter.SessionState{PaymentStatus: adapter.SessionPaymentPaid, AmountMinor: 999, Currency: "usd"}, nil
}

// =============================
// Repositories
// =============================

// ---- Mock AccountRepository ----

type MockAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Account
	byEmail map[string]string
	bySlug  map[string]string

	SaveFunc                         func(ctx context.Context, tx repository.Tx, a *model.Account) error
	FindByIDFunc                     func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	FindByEmailFunc                  func(ctx context.Context, tx repository.Tx, email string) (*model.Account, error)
	FindBySlugFunc                   func(ctx context.Context, tx repository.Tx, slug string) (*model.Account, error)
	ExtendSubscriptionIfInactiveFunc func(ctx context.Context, tx repository.Tx, id string, until, now time.Time) (bool, error)
	SetBillingCustomerRefIfEmptyFunc func(ctx context.Context, tx repository.Tx, id, ref string) (bool, error)
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{
		byID:    map[string]*model.Account{},
		byEmail: map[string]string{},
		bySlug:  map[string]string{},
	}
}

func (r *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	r.byID[cp.ID] = &cp
	r.byEmail[cp.Email] = cp.ID
	r.bySlug[cp.Slug] = cp.ID
	return nil
}

func (r *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Account, error) {
	if r.FindByEmailFunc != nil {
		return r.FindByEmailFunc(ctx, tx, email)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byEmail[email]; ok {
		cp := *r.byID[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccountRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Account, error) {
	if r.FindBySlugFunc != nil {
		return r.FindBySlugFunc(ctx, tx, slug)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.bySlug[slug]; ok {
		cp := *r.byID[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccountRepo) ExtendSubscriptionIfInactive(ctx context.Context, tx repository.Tx, id string, until, at time.Time) (bool, error) {
	if r.ExtendSubscriptionIfInactiveFunc != nil {
		return r.ExtendSubscriptionIfInactiveFunc(ctx, tx, id, until, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.SubscriptionEndsAt != nil && at.Before(*a.SubscriptionEndsAt) {
		return false, nil
	}
	u := until
	a.SubscriptionEndsAt = &u
	return true, nil
}

func (r *MockAccountRepo) SetBillingCustomerRefIfEmpty(ctx context.Context, tx repository.Tx, id, ref string) (bool, error) {
	if r.SetBillingCustomerRefIfEmptyFunc != nil {
		return r.SetBillingCustomerRefIfEmptyFunc(ctx, tx, id, ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.BillingCustomerRef != nil {
		return false, nil
	}
	v := ref
	a.BillingCustomerRef = &v
	return true, nil
}

func (r *MockAccountRepo) CountAccounts(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *MockAccountRepo) CountActiveSubscriptions(ctx context.Context, tx repository.Tx, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.byID {
		if a.SubscriptionEndsAt != nil && at.Before(*a.SubscriptionEndsAt) {
			n++
		}
	}
	return n, nil
}

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu        sync.Mutex
	data      map[string]*model.Transaction
	bySession map[string]string

	SaveFunc                  func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	FindBySessionRefFunc      func(ctx context.Context, tx repository.Tx, sessionRef string) (*model.Transaction, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error)
	ListPendingOlderThanFunc  func(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	SumPaidByPeriodFunc       func(ctx context.Context, tx repository.Tx, period string) (int64, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: map[string]*model.Transaction{}, bySession: map[string]string{}}
}

func (r *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, dup := r.bySession[t.SessionRef]; dup && r.bySession[t.SessionRef] != t.ID {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.data[cp.ID] = &cp
	r.bySession[cp.SessionRef] = cp.ID
	return nil
}

func (r *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.data[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) FindBySessionRef(ctx context.Context, tx repository.Tx, sessionRef string) (*model.Transaction, error) {
	if r.FindBySessionRefFunc != nil {
		return r.FindBySessionRefFunc(ctx, tx, sessionRef)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.bySession[sessionRef]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	if r.UpdateStatusIfPendingFunc != nil {
		return r.UpdateStatusIfPendingFunc(ctx, tx, id, status, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	t.PaymentStatus = status
	t.PaidAt = paidAt
	t.UpdatedAt = now()
	return true, nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if r.ListPendingOlderThanFunc != nil {
		return r.ListPendingOlderThanFunc(ctx, tx, olderThan, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.data {
		if t.PaymentStatus == model.PaymentStatusPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockTransactionRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	if r.SumPaidByPeriodFunc != nil {
		return r.SumPaidByPeriodFunc(ctx, tx, period)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.data {
		if t.PaymentStatus == model.PaymentStatusPaid {
			sum += t.Amount
		}
	}
	return sum, nil
}

// ---- Mock SongRepository ----

type MockSongRepo struct {
	mu   sync.Mutex
	data map[string]*model.Song

	SaveFunc    func(ctx context.Context, tx repository.Tx, s *model.Song) error
	SaveAllFunc func(ctx context.Context, tx repository.Tx, songs []*model.Song) error
}

var _ repository.SongRepository = (*MockSongRepo)(nil)

func NewMockSongRepo() *MockSongRepo {
	return &MockSongRepo{data: map[string]*model.Song{}}
}

func (r *MockSongRepo) Save(ctx context.Context, tx repository.Tx, s *model.Song) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockSongRepo) SaveAll(ctx context.Context, tx repository.Tx, songs []*model.Song) error {
	if r.SaveAllFunc != nil {
		return r.SaveAllFunc(ctx, tx, songs)
	}
	for _, s := range songs {
		if err := r.Save(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *MockSongRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok && s.AccountID == accountID {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSongRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Song
	for _, s := range r.data {
		if s.AccountID == accountID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MockSongRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok && s.AccountID == accountID {
		delete(r.data, id)
		return nil
	}
	return domain.ErrNotFound
}

func (r *MockSongRepo) MaxPosition(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, s := range r.data {
		if s.AccountID == accountID && s.Position > max {
			max = s.Position
		}
	}
	return max, nil
}

// ---- Mock RequestRepository ----

type MockRequestRepo struct {
	mu   sync.Mutex
	data map[string]*model.SongRequest

	SaveFunc                   func(ctx context.Context, tx repository.Tx, req *model.SongRequest) error
	CountForAccountBetweenFunc func(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error)
}

var _ repository.RequestRepository = (*MockRequestRepo)(nil)

func NewMockRequestRepo() *MockRequestRepo {
	return &MockRequestRepo{data: map[string]*model.SongRequest{}}
}

func (r *MockRequestRepo) Save(ctx context.Context, tx repository.Tx, req *model.SongRequest) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, req)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockRequestRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.SongRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.data[id]; ok && req.AccountID == accountID && req.DeletedAt == nil {
		cp := *req
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRequestRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.SongRequest
	for _, req := range r.data {
		if req.AccountID != accountID || req.DeletedAt != nil {
			continue
		}
		if !includePlayed && req.Played() {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockRequestRepo) CountForAccountBetween(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	if r.CountForAccountBetweenFunc != nil {
		return r.CountForAccountBetweenFunc(ctx, tx, accountID, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.data {
		if req.AccountID != accountID {
			continue
		}
		// Soft-deleted rows still count.
		if !req.CreatedAt.Before(from) && req.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *MockRequestRepo) MarkPlayed(ctx context.Context, tx repository.Tx, accountID, id string, playedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.data[id]
	if !ok || req.AccountID != accountID || req.DeletedAt != nil {
		return false, nil
	}
	if req.PlayedAt != nil {
		return false, nil
	}
	p := playedAt
	req.PlayedAt = &p
	return true, nil
}

func (r *MockRequestRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.data[id]
	if !ok || req.AccountID != accountID || req.DeletedAt != nil {
		return domain.ErrNotFound
	}
	d := now()
	req.DeletedAt = &d
	return nil
}

func (r *MockRequestRepo) CountRequests(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx provides a way to control transaction behavior during tests.
// By default, it runs the function immediately without a real transaction.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}
