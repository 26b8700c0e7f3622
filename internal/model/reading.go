package model

import "time"

// ReadingKind は計測値の種別を表す。
type ReadingKind string

const (
	// ReadingKindBloodPressure は血圧を表す。
	ReadingKindBloodPressure ReadingKind = "bloodpressure"
	// ReadingKindSpO2 は血中酸素飽和度を表す。
	ReadingKindSpO2 ReadingKind = "spo2"
	// ReadingKindWeight は体重を表す。
	ReadingKindWeight ReadingKind = "weight"
)

// BloodPressureReading は1回分の血圧測定値。作成後は変更しない。
type BloodPressureReading struct {
	ID        string
	UserID    string
	Systolic  float64
	Diastolic float64
	Timestamp time.Time
	CreatedAt time.Time
}

// SpO2Reading は1回分の血中酸素飽和度測定値。
type SpO2Reading struct {
	ID        string
	UserID    string
	SpO2      float64
	Timestamp time.Time
	CreatedAt time.Time
}

// WeightReading は1回分の体重測定値。Dayはクライアントが付与する曜日などのラベル。
type WeightReading struct {
	ID        string
	UserID    string
	Weight    float64
	Day       string
	Timestamp time.Time
	CreatedAt time.Time
}

// PageRequest はオフセット方式ページネーションの要求パラメータ。
type PageRequest struct {
	Page  int
	Limit int
}

// Offset はPageとLimitから読み飛ばす件数を算出する。
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page はページ単位で取得した計測値の一覧と総件数を保持する。
type Page[T any] struct {
	Items []T
	PageRequest
	Total int
}

// HasMore は後続ページが存在するかを返す。
func (p Page[T]) HasMore() bool {
	return p.Page*p.Limit < p.Total
}
