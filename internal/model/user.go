// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderGoogle はGoogleアカウントによるidentityのプロバイダー名。
const ProviderGoogle = "google"

// User はサービス利用ユーザーを表す。
// Emailはユーザーを一意に識別する。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組はユーザーを一意に識別する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}
