//go:build !integration

package web

import (
	"context"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"stagecall/internal/config"
	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/adapter"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/qr"
	"stagecall/internal/infra/redis"
	"stagecall/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock Repositories (Ports) ---

type mockAccountRepo struct {
	mu   sync.Mutex
	data map[string]*model.Account

	SaveError error
	FindError error
}

var _ repository.AccountRepository = (*mockAccountRepo)(nil)

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{data: map[string]*model.Account{}}
}

func (m *mockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	m.data[cp.ID] = &cp
	return nil
}

func (m *mockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.data[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Account, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Account, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data {
		if a.Slug == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountRepo) ExtendSubscriptionIfInactive(ctx context.Context, tx repository.Tx, id string, until, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
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

func (m *mockAccountRepo) SetBillingCustomerRefIfEmpty(ctx context.Context, tx repository.Tx, id, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
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

func (m *mockAccountRepo) CountAccounts(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), nil
}

func (m *mockAccountRepo) CountActiveSubscriptions(ctx context.Context, tx repository.Tx, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.data {
		if a.SubscriptionEndsAt != nil && at.Before(*a.SubscriptionEndsAt) {
			n++
		}
	}
	return n, nil
}

// backdate rewrites an account's signup instant so entitlement tests can put
// it past the trial or into a later quota window.
func (m *mockAccountRepo) backdate(id string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.data[id]; ok {
		a.CreatedAt = createdAt
	}
}

type mockSongRepo struct {
	mu   sync.Mutex
	data map[string]*model.Song

	SaveError error
	ListError error
}

var _ repository.SongRepository = (*mockSongRepo)(nil)

func newMockSongRepo() *mockSongRepo {
	return &mockSongRepo{data: map[string]*model.Song{}}
}

func (m *mockSongRepo) Save(ctx context.Context, tx repository.Tx, s *model.Song) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	m.data[cp.ID] = &cp
	return nil
}

func (m *mockSongRepo) SaveAll(ctx context.Context, tx repository.Tx, songs []*model.Song) error {
	for _, s := range songs {
		if err := m.Save(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockSongRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.data[id]; ok && s.AccountID == accountID {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSongRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Song, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Song
	for _, s := range m.data {
		if s.AccountID == accountID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *mockSongRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.data[id]; ok && s.AccountID == accountID {
		delete(m.data, id)
		return nil
	}
	return domain.ErrNotFound
}

func (m *mockSongRepo) MaxPosition(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, s := range m.data {
		if s.AccountID == accountID && s.Position > max {
			max = s.Position
		}
	}
	return max, nil
}

type mockRequestRepo struct {
	mu   sync.Mutex
	data map[string]*model.SongRequest

	SaveError  error
	CountError error
}

var _ repository.RequestRepository = (*mockRequestRepo)(nil)

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{data: map[string]*model.SongRequest{}}
}

func (m *mockRequestRepo) Save(ctx context.Context, tx repository.Tx, req *model.SongRequest) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.data[cp.ID] = &cp
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.SongRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.data[id]; ok && req.AccountID == accountID && req.DeletedAt == nil {
		cp := *req
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockRequestRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SongRequest
	for _, req := range m.data {
		if req.AccountID != accountID || req.DeletedAt != nil {
			continue
		}
		if !includePlayed && req.Played() {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRequestRepo) CountForAccountBetween(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, req := range m.data {
		if req.AccountID != accountID {
			continue
		}
		if !req.CreatedAt.Before(from) && req.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *mockRequestRepo) MarkPlayed(ctx context.Context, tx repository.Tx, accountID, id string, playedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.data[id]
	if !ok || req.AccountID != accountID || req.DeletedAt != nil || req.PlayedAt != nil {
		return false, nil
	}
	p := playedAt
	req.PlayedAt = &p
	return true, nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.data[id]
	if !ok || req.AccountID != accountID || req.DeletedAt != nil {
		return domain.ErrNotFound
	}
	d := time.Now()
	req.DeletedAt = &d
	return nil
}

func (m *mockRequestRepo) CountRequests(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), nil
}

type mockTransactionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Transaction
}

var _ repository.TransactionRepository = (*mockTransactionRepo)(nil)

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{data: map[string]*model.Transaction{}}
}

func (m *mockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	m.data[cp.ID] = &cp
	return nil
}

func (m *mockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.data[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockTransactionRepo) FindBySessionRef(ctx context.Context, tx repository.Tx, sessionRef string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data {
		if t.SessionRef == sessionRef {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTransactionRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	t.PaymentStatus = status
	t.PaidAt = paidAt
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.data {
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

func (m *mockTransactionRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.data {
		if t.PaymentStatus == model.PaymentStatusPaid {
			sum += t.Amount
		}
	}
	return sum, nil
}

// --- Mock payment gateway and tx manager ---

type mockGateway struct {
	CreateSessionFunc func(ctx context.Context, spec adapter.CheckoutSpec) (adapter.CheckoutSession, error)
	SessionStatusFunc func(ctx context.Context, sessionRef string) (adapter.SessionState, error)
}

var _ adapter.CheckoutGateway = (*mockGateway)(nil)

func (m *mockGateway) Name() string { return "mockpay" }

func (m *mockGateway) CreateSession(ctx context.Context, spec adapter.CheckoutSpec) (adapter.CheckoutSession, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, spec)
	}
	ref := "cs_test_" + uuid.NewString()
	return adapter.CheckoutSession{SessionRef: ref, RedirectURL: "https://checkout.example/" + ref}, nil
}

func (m *mockGateway) SessionStatus(ctx context.Context, sessionRef string) (adapter.SessionState, error) {
	if m.SessionStatusFunc != nil {
		return m.SessionStatusFunc(ctx, sessionRef)
	}
	return adapter.SessionState{PaymentStatus: adapter.SessionPaymentPaid, AmountMinor: 999, Currency: "usd", CustomerRef: "cus_test"}, nil
}

type mockTxManager struct{}

var _ repository.TransactionManager = (*mockTxManager)(nil)

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// --- Fake redis for the rate limiter ---

type fakeRedis struct {
	mu     sync.Mutex
	counts map[string]int64

	IncrError error
}

var _ redis.RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	return "", domain.ErrNotFound
}
func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.IncrError != nil {
		return 0, f.IncrError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeRedis) Close() error                                  { return nil }

// --- Test environment ---

// testEnv wires mock repos into real usecases and mounts the full router,
// so handler tests drive the same tree production serves.
type testEnv struct {
	accounts *mockAccountRepo
	songs    *mockSongRepo
	requests *mockRequestRepo
	trx      *mockTransactionRepo
	gateway  *mockGateway
	red      *fakeRedis

	entCfg model.EntitlementConfig
	auth   *AuthManager
	router http.Handler
}

func newTestEnv() *testEnv {
	logger := newTestLogger()

	accounts := newMockAccountRepo()
	songs := newMockSongRepo()
	requests := newMockRequestRepo()
	trx := newMockTransactionRepo()
	gateway := &mockGateway{}
	red := newFakeRedis()
	entCfg := model.DefaultEntitlementConfig()

	entitlementUC := usecase.NewEntitlementUseCase(accounts, requests, entCfg, logger)
	accountUC := usecase.NewAccountUseCase(accounts, entitlementUC, logger)
	songUC := usecase.NewSongUseCase(songs, logger)
	requestUC := usecase.NewRequestUseCase(accounts, songs, requests, entitlementUC, logger)
	billingUC := usecase.NewBillingUseCase(accounts, trx, &mockTxManager{}, gateway, entCfg, "https://stagecall.test", logger)
	statsUC := usecase.NewStatsUseCase(accounts, trx, requests, logger)

	auth := NewAuthManager("test-session-secret-please-change", "", "", false, time.Hour)
	limiter := redis.NewRateLimiter(red)
	assets := qr.NewGenerator("https://stagecall.test")

	cfg := &config.Config{}
	cfg.Web.Port = 0
	cfg.Web.PublicURL = "https://stagecall.test"
	cfg.Admin.Token = "test-admin-key"
	cfg.Admin.MetricsUser = "metrics"
	cfg.Admin.MetricsPass = "metrics-pass"
	cfg.RateLimit.Requests = 5
	cfg.RateLimit.Window = time.Minute
	cfg.Billing.WebhookSecret = "whsec_test"

	srv := NewServer(cfg, accountUC, songUC, requestUC, billingUC, entitlementUC, statsUC, auth, limiter, assets, logger)

	return &testEnv{
		accounts: accounts,
		songs:    songs,
		requests: requests,
		trx:      trx,
		gateway:  gateway,
		red:      red,
		entCfg:   entCfg,
		auth:     auth,
		router:   srv.Router(),
	}
}
