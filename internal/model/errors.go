package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: auth, validation, system
	Action   string       // ユーザー向け対処方法
	Details  []FieldError // バリデーションエラーのフィールド別詳細
}

// FieldError は1フィールド分のバリデーションエラー。
type FieldError struct {
	Field   string
	Message string
	Value   any
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeUserAlreadyExists = "USER_ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeStorageFailure    = "STORAGE_FAILURE"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewInvalidCredentialError はGoogleのIDトークン検証失敗エラーを生成する。
func NewInvalidCredentialError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Invalid Google token: " + reason,
		Category: "auth",
		Action:   "Sign in with Google again.",
	}
}

// NewUserAlreadyExistsError はサインアップ済みメールアドレスでの再登録エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  "User already exists. Please log in instead.",
		Category: "auth",
		Action:   "Log in with the existing account.",
	}
}

// NewUnauthorizedError はアクセストークン未指定エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Log in and send the access token as a Bearer header.",
	}
}

// NewForbiddenError は無効・期限切れのアクセストークンエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Forbidden",
		Category: "auth",
		Action:   "The access token is invalid or expired. Log in again.",
	}
}

// NewValidationFailedError は入力値検証エラーを生成する。
// 失敗したすべてのフィールドをDetailsに含める。
func NewValidationFailedError(fields []FieldError) *APIError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  strings.Join(msgs, "; "),
		Category: "validation",
		Action:   "Fix the listed fields and submit again.",
		Details:  fields,
	}
}

// NewStorageFailureError はデータベース操作失敗エラーを生成する。
// 下位エラーのメッセージはそのまま含める。
func NewStorageFailureError(prefix string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  prefix + ": " + cause.Error(),
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Log in again.",
	}
}
