package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/healthtrack/internal/middleware"
	"github.com/hitoshi/healthtrack/internal/model"
	"github.com/hitoshi/healthtrack/internal/reading"
	"github.com/hitoshi/healthtrack/internal/realtime"
)

// totalCountHeader はクライアントがページ数を計算するための総件数ヘッダー。
const totalCountHeader = "X-Total-Count"

// ReadingServiceInterface は計測値ハンドラーが必要とするサービスインターフェース。
type ReadingServiceInterface interface {
	CreateBloodPressure(ctx context.Context, userID string, in *reading.BloodPressureInput) (*model.BloodPressureReading, error)
	ListBloodPressure(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.BloodPressureReading], error)
	CreateSpO2(ctx context.Context, userID string, in *reading.SpO2Input) (*model.SpO2Reading, error)
	ListSpO2(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.SpO2Reading], error)
	CreateWeight(ctx context.Context, userID string, in *reading.WeightInput) (*model.WeightReading, error)
	ListWeight(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.WeightReading], error)
}

// ReadingHandler は血圧・SpO2・体重の登録と一覧のHTTPハンドラー。
// 登録成功時はレスポンスを書き込んだ後にリアルタイム配信する。
type ReadingHandler struct {
	service   ReadingServiceInterface
	publisher realtime.Publisher
}

// NewReadingHandler はReadingHandlerを生成する。
func NewReadingHandler(service ReadingServiceInterface, publisher realtime.Publisher) *ReadingHandler {
	return &ReadingHandler{
		service:   service,
		publisher: publisher,
	}
}

// bloodPressureResponse は血圧のAPIレスポンス。
type bloodPressureResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Systolic  float64   `json:"systolic"`
	Diastolic float64   `json:"diastolic"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// spo2Response はSpO2のAPIレスポンス。
type spo2Response struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SpO2      float64   `json:"spO2"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// weightResponse は体重のAPIレスポンス。
type weightResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Weight    float64   `json:"weight"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// listResponse はページ単位の一覧レスポンス。
type listResponse[T any] struct {
	Data         []T  `json:"data"`
	CurrentPage  int  `json:"currentPage"`
	TotalEntries int  `json:"totalEntries"`
	HasMore      bool `json:"hasMore"`
}

// CreateBloodPressure は血圧を登録する。
// POST /api/bloodpressure
func (h *ReadingHandler) CreateBloodPressure(w http.ResponseWriter, r *http.Request) {
	createReading(h, w, r, realtime.EventNewBloodPressure, h.service.CreateBloodPressure, toBloodPressureResponse)
}

// ListBloodPressure は血圧の一覧を返す。
// GET /api/bloodpressure?page=1&limit=10
func (h *ReadingHandler) ListBloodPressure(w http.ResponseWriter, r *http.Request) {
	listReadings(w, r, h.service.ListBloodPressure, toBloodPressureResponse)
}

// CreateSpO2 はSpO2を登録する。
// POST /api/spo2
func (h *ReadingHandler) CreateSpO2(w http.ResponseWriter, r *http.Request) {
	createReading(h, w, r, realtime.EventNewSpO2, h.service.CreateSpO2, toSpO2Response)
}

// ListSpO2 はSpO2の一覧を返す。
// GET /api/spo2?page=1&limit=10
func (h *ReadingHandler) ListSpO2(w http.ResponseWriter, r *http.Request) {
	listReadings(w, r, h.service.ListSpO2, toSpO2Response)
}

// CreateWeight は体重を登録する。
// POST /api/weight
func (h *ReadingHandler) CreateWeight(w http.ResponseWriter, r *http.Request) {
	createReading(h, w, r, realtime.EventNewWeight, h.service.CreateWeight, toWeightResponse)
}

// ListWeight は体重の一覧を返す。
// GET /api/weight?page=1&limit=10
func (h *ReadingHandler) ListWeight(w http.ResponseWriter, r *http.Request) {
	listReadings(w, r, h.service.ListWeight, toWeightResponse)
}

// createReading は入力をデコードして登録し、201を書き込んだ後にeventを配信する。
func createReading[In, Rec, Resp any](
	h *ReadingHandler,
	w http.ResponseWriter,
	r *http.Request,
	event string,
	create func(context.Context, string, *In) (*Rec, error),
	toResponse func(*Rec) Resp,
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in In
	if apiErr := decodeJSON(w, r, &in); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	rec, err := create(r.Context(), userID, &in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toResponse(rec)
	writeJSON(w, http.StatusCreated, resp)

	// Publishはブロックしない
	if h.publisher != nil {
		h.publisher.Publish(userID, event, resp)
	}
}

// listReadings はクエリのpage・limitで一覧を取得し、総件数ヘッダー付きで返す。
func listReadings[Rec, Resp any](
	w http.ResponseWriter,
	r *http.Request,
	list func(context.Context, string, model.PageRequest) (*model.Page[Rec], error),
	toResponse func(*Rec) Resp,
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page := reading.NormalizePage(queryInt(r, "page"), queryInt(r, "limit"))

	result, err := list(r.Context(), userID, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]Resp, len(result.Items))
	for i := range result.Items {
		data[i] = toResponse(&result.Items[i])
	}

	w.Header().Set(totalCountHeader, strconv.Itoa(result.Total))
	writeJSON(w, http.StatusOK, listResponse[Resp]{
		Data:         data,
		CurrentPage:  result.Page,
		TotalEntries: result.Total,
		HasMore:      result.HasMore(),
	})
}

// queryInt はクエリパラメータを整数として取得する。不正な値は0を返す。
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func toBloodPressureResponse(b *model.BloodPressureReading) bloodPressureResponse {
	return bloodPressureResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Systolic:  b.Systolic,
		Diastolic: b.Diastolic,
		Timestamp: b.Timestamp,
		CreatedAt: b.CreatedAt,
	}
}

func toSpO2Response(s *model.SpO2Reading) spo2Response {
	return spo2Response{
		ID:        s.ID,
		UserID:    s.UserID,
		SpO2:      s.SpO2,
		Timestamp: s.Timestamp,
		CreatedAt: s.CreatedAt,
	}
}

func toWeightResponse(wr *model.WeightReading) weightResponse {
	return weightResponse{
		ID:        wr.ID,
		UserID:    wr.UserID,
		Weight:    wr.Weight,
		Day:       wr.Day,
		Timestamp: wr.Timestamp,
		CreatedAt: wr.CreatedAt,
	}
}
