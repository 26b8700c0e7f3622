// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/healthtrack/internal/model"
)

// ErrUniqueViolation は一意制約違反（SQLSTATE 23505）を表す。
// 呼び出し側はerrors.Isで判定する。
var ErrUniqueViolation = errors.New("unique constraint violation")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。emailが重複する場合はErrUniqueViolationを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// BloodPressureRepository は血圧測定値の永続化インターフェース。
type BloodPressureRepository interface {
	// Create は測定値を1件追加する。
	Create(ctx context.Context, reading *model.BloodPressureReading) error

	// ListByUser はユーザーの測定値をtimestamp昇順でページ取得し、総件数とともに返す。
	ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.BloodPressureReading, int, error)
}

// SpO2Repository は血中酸素飽和度測定値の永続化インターフェース。
type SpO2Repository interface {
	Create(ctx context.Context, reading *model.SpO2Reading) error
	ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.SpO2Reading, int, error)
}

// WeightRepository は体重測定値の永続化インターフェース。
type WeightRepository interface {
	Create(ctx context.Context, reading *model.WeightReading) error
	ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.WeightReading, int, error)
}
