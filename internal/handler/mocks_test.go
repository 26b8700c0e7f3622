package handler

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/healthtrack/internal/auth"
	"github.com/hitoshi/healthtrack/internal/model"
	"github.com/hitoshi/healthtrack/internal/reading"
)

// --- 認証サービスのモック ---

type mockAuthService struct {
	signUpFn      func(ctx context.Context, rawIDToken string) (*auth.Result, error)
	loginFn       func(ctx context.Context, rawIDToken string) (*auth.Result, error)
	currentUserFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) SignUp(ctx context.Context, rawIDToken string) (*auth.Result, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, rawIDToken)
	}
	return nil, model.NewInvalidCredentialError("not configured")
}

func (m *mockAuthService) Login(ctx context.Context, rawIDToken string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, rawIDToken)
	}
	return nil, model.NewInvalidCredentialError("not configured")
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

// --- 計測値サービスのモック ---

type mockReadingService struct {
	createBPFn     func(ctx context.Context, userID string, in *reading.BloodPressureInput) (*model.BloodPressureReading, error)
	listBPFn       func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.BloodPressureReading], error)
	createSpO2Fn   func(ctx context.Context, userID string, in *reading.SpO2Input) (*model.SpO2Reading, error)
	listSpO2Fn     func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.SpO2Reading], error)
	createWeightFn func(ctx context.Context, userID string, in *reading.WeightInput) (*model.WeightReading, error)
	listWeightFn   func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.WeightReading], error)
}

func (m *mockReadingService) CreateBloodPressure(ctx context.Context, userID string, in *reading.BloodPressureInput) (*model.BloodPressureReading, error) {
	return m.createBPFn(ctx, userID, in)
}

func (m *mockReadingService) ListBloodPressure(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.BloodPressureReading], error) {
	return m.listBPFn(ctx, userID, page)
}

func (m *mockReadingService) CreateSpO2(ctx context.Context, userID string, in *reading.SpO2Input) (*model.SpO2Reading, error) {
	return m.createSpO2Fn(ctx, userID, in)
}

func (m *mockReadingService) ListSpO2(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.SpO2Reading], error) {
	return m.listSpO2Fn(ctx, userID, page)
}

func (m *mockReadingService) CreateWeight(ctx context.Context, userID string, in *reading.WeightInput) (*model.WeightReading, error) {
	return m.createWeightFn(ctx, userID, in)
}

func (m *mockReadingService) ListWeight(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.WeightReading], error) {
	return m.listWeightFn(ctx, userID, page)
}

// --- 配信の記録 ---

type publishedEvent struct {
	userID  string
	event   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(userID, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, event: event, payload: payload})
}

func (p *recordingPublisher) snapshot() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// --- インメモリリポジトリ ---

// memReadings はテスト用のインメモリ計測値リポジトリ。
type memReadings[T any] struct {
	mu        sync.Mutex
	items     []T
	userOf    func(*T) string
	less      func(a, b *T) bool
	createErr error
}

func (m *memReadings[T]) Create(ctx context.Context, r *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.items = append(m.items, *r)
	return nil
}

func (m *memReadings[T]) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]T, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []T
	for i := range m.items {
		if m.userOf(&m.items[i]) == userID {
			owned = append(owned, m.items[i])
		}
	}
	sort.SliceStable(owned, func(i, j int) bool { return m.less(&owned[i], &owned[j]) })

	total := len(owned)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return append([]T{}, owned[start:end]...), total, nil
}

func (m *memReadings[T]) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func newMemBPRepo() *memReadings[model.BloodPressureReading] {
	return &memReadings[model.BloodPressureReading]{
		userOf: func(r *model.BloodPressureReading) string { return r.UserID },
		less: func(a, b *model.BloodPressureReading) bool {
			if a.Timestamp.Equal(b.Timestamp) {
				return a.ID < b.ID
			}
			return a.Timestamp.Before(b.Timestamp)
		},
	}
}

func newMemSpO2Repo() *memReadings[model.SpO2Reading] {
	return &memReadings[model.SpO2Reading]{
		userOf: func(r *model.SpO2Reading) string { return r.UserID },
		less: func(a, b *model.SpO2Reading) bool {
			if a.Timestamp.Equal(b.Timestamp) {
				return a.ID < b.ID
			}
			return a.Timestamp.Before(b.Timestamp)
		},
	}
}

func newMemWeightRepo() *memReadings[model.WeightReading] {
	return &memReadings[model.WeightReading]{
		userOf: func(r *model.WeightReading) string { return r.UserID },
		less: func(a, b *model.WeightReading) bool {
			if a.Timestamp.Equal(b.Timestamp) {
				return a.ID < b.ID
			}
			return a.Timestamp.Before(b.Timestamp)
		},
	}
}
