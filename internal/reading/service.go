// Package reading は血圧・SpO2・体重の計測値の登録と一覧取得を提供する。
package reading

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/healthtrack/internal/metrics"
	"github.com/hitoshi/healthtrack/internal/model"
	"github.com/hitoshi/healthtrack/internal/repository"
	"github.com/hitoshi/healthtrack/internal/security"
	"github.com/hitoshi/healthtrack/internal/validation"
)

// ページネーションの既定値
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage はPage*Limitがオーバーフローしない上限
	MaxPage = 10_000_000
)

// BloodPressureInput は血圧登録リクエスト。
type BloodPressureInput struct {
	Systolic  any `json:"systolic" validate:"numeric_value" message:"Systolic value must be numeric"`
	Diastolic any `json:"diastolic" validate:"numeric_value" message:"Diastolic value must be numeric"`
	Timestamp any `json:"timestamp" validate:"omitempty,timestamp_value" message:"Timestamp must be an RFC3339 date, a datetime-local value or epoch milliseconds"`
}

// SpO2Input はSpO2登録リクエスト。
type SpO2Input struct {
	SpO2      any `json:"spO2" validate:"numeric_value" message:"SpO2 value must be numeric"`
	Timestamp any `json:"timestamp" validate:"omitempty,timestamp_value" message:"Timestamp must be an RFC3339 date, a datetime-local value or epoch milliseconds"`
}

// WeightInput は体重登録リクエスト。
type WeightInput struct {
	Weight    any `json:"weight" validate:"numeric_value" message:"Weight value must be numeric"`
	Day       any `json:"day" validate:"required,string_value" message:"Day must be a string"`
	Timestamp any `json:"timestamp" validate:"omitempty,timestamp_value" message:"Timestamp must be an RFC3339 date, a datetime-local value or epoch milliseconds"`
}

// Service は計測値のサービス層。
// 登録は1回のINSERTのみで、失敗時もリトライしない。
type Service struct {
	bpRepo     repository.BloodPressureRepository
	spo2Repo   repository.SpO2Repository
	weightRepo repository.WeightRepository
	sanitizer  security.LabelSanitizer
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	bpRepo repository.BloodPressureRepository,
	spo2Repo repository.SpO2Repository,
	weightRepo repository.WeightRepository,
	sanitizer security.LabelSanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Service{
		bpRepo:     bpRepo,
		spo2Repo:   spo2Repo,
		weightRepo: weightRepo,
		sanitizer:  sanitizer,
		metrics:    mc,
		now:        time.Now,
	}
}

// NormalizePage はページ指定を正規化する。1未満は既定値、pageはMaxPage、limitはMaxLimitで頭打ちにする。
func NormalizePage(page, limit int) model.PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return model.PageRequest{Page: page, Limit: limit}
}

// CreateBloodPressure は血圧を検証して登録する。
func (s *Service) CreateBloodPressure(ctx context.Context, userID string, in *BloodPressureInput) (*model.BloodPressureReading, error) {
	if apiErr := validation.ValidateStruct(in); apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	ts, _ := validation.Timestamp(in.Timestamp, now)
	systolic, _ := validation.Number(in.Systolic)
	diastolic, _ := validation.Number(in.Diastolic)

	rd := &model.BloodPressureReading{
		ID:        uuid.New().String(),
		UserID:    userID,
		Systolic:  systolic,
		Diastolic: diastolic,
		Timestamp: ts,
		CreatedAt: now,
	}

	if err := s.bpRepo.Create(ctx, rd); err != nil {
		return nil, s.storageFailure(model.ReadingKindBloodPressure, "Error saving blood pressure data", err)
	}

	s.created(model.ReadingKindBloodPressure, userID, rd.ID)
	return rd, nil
}

// ListBloodPressure はユーザーの血圧をtimestamp昇順でページ取得する。
func (s *Service) ListBloodPressure(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.BloodPressureReading], error) {
	items, total, err := s.bpRepo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, s.storageFailure(model.ReadingKindBloodPressure, "Error fetching blood pressure data", err)
	}
	return &model.Page[model.BloodPressureReading]{Items: items, PageRequest: page, Total: total}, nil
}

// CreateSpO2 はSpO2を検証して登録する。
func (s *Service) CreateSpO2(ctx context.Context, userID string, in *SpO2Input) (*model.SpO2Reading, error) {
	if apiErr := validation.ValidateStruct(in); apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	ts, _ := validation.Timestamp(in.Timestamp, now)
	value, _ := validation.Number(in.SpO2)

	rd := &model.SpO2Reading{
		ID:        uuid.New().String(),
		UserID:    userID,
		SpO2:      value,
		Timestamp: ts,
		CreatedAt: now,
	}

	if err := s.spo2Repo.Create(ctx, rd); err != nil {
		return nil, s.storageFailure(model.ReadingKindSpO2, "Error saving SpO2 data", err)
	}

	s.created(model.ReadingKindSpO2, userID, rd.ID)
	return rd, nil
}

// ListSpO2 はユーザーのSpO2をtimestamp昇順でページ取得する。
func (s *Service) ListSpO2(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.SpO2Reading], error) {
	items, total, err := s.spo2Repo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, s.storageFailure(model.ReadingKindSpO2, "Error fetching SpO2 data", err)
	}
	return &model.Page[model.SpO2Reading]{Items: items, PageRequest: page, Total: total}, nil
}

// CreateWeight は体重を検証して登録する。dayはHTMLを除去してから保存する。
func (s *Service) CreateWeight(ctx context.Context, userID string, in *WeightInput) (*model.WeightReading, error) {
	if apiErr := validation.ValidateStruct(in); apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	ts, _ := validation.Timestamp(in.Timestamp, now)
	value, _ := validation.Number(in.Weight)
	day, _ := in.Day.(string)

	rd := &model.WeightReading{
		ID:        uuid.New().String(),
		UserID:    userID,
		Weight:    value,
		Day:       s.sanitizer.Sanitize(day),
		Timestamp: ts,
		CreatedAt: now,
	}

	if err := s.weightRepo.Create(ctx, rd); err != nil {
		return nil, s.storageFailure(model.ReadingKindWeight, "Error saving weight data", err)
	}

	s.created(model.ReadingKindWeight, userID, rd.ID)
	return rd, nil
}

// ListWeight はユーザーの体重をtimestamp昇順でページ取得する。
func (s *Service) ListWeight(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.WeightReading], error) {
	items, total, err := s.weightRepo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, s.storageFailure(model.ReadingKindWeight, "Error fetching weight data", err)
	}
	return &model.Page[model.WeightReading]{Items: items, PageRequest: page, Total: total}, nil
}

func (s *Service) created(kind model.ReadingKind, userID, readingID string) {
	s.metrics.RecordReadingCreated(string(kind))
	slog.Info("reading created",
		slog.String("kind", string(kind)),
		slog.String("user_id", userID),
		slog.String("reading_id", readingID),
	)
}

func (s *Service) storageFailure(kind model.ReadingKind, prefix string, err error) error {
	s.metrics.RecordStorageFailure(string(kind))
	slog.Error("reading storage failure",
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	return model.NewStorageFailureError(prefix, err)
}
