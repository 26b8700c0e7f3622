// Package auth はGoogle IDトークンによる認証とアクセストークンの発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/healthtrack/internal/model"
)

// UserDirectory はユーザーの検索・作成インターフェース。
type UserDirectory interface {
	FindOrCreateByGoogle(ctx context.Context, subjectID, email, name string) (*model.User, error)
	CreateIfAbsent(ctx context.Context, email, name, subjectID string) (*model.User, error)
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

// AccessTokenIssuer はアクセストークンの発行インターフェース。
type AccessTokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// Result はサインアップ・ログイン成功時の結果。
type Result struct {
	User        *model.User
	AccessToken string
	ExpiresAt   time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier  IDTokenVerifier
	directory UserDirectory
	issuer    AccessTokenIssuer
}

// NewService はServiceを生成する。
func NewService(verifier IDTokenVerifier, directory UserDirectory, issuer AccessTokenIssuer) *Service {
	return &Service{
		verifier:  verifier,
		directory: directory,
		issuer:    issuer,
	}
}

// SignUp はIDトークンを検証し、新規ユーザーを作成してアクセストークンを発行する。
// 同じメールアドレスのユーザーが既に存在する場合はUserAlreadyExistsを返す。
func (s *Service) SignUp(ctx context.Context, rawIDToken string) (*Result, error) {
	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.CreateIfAbsent(ctx, identity.Email, identity.Name, identity.Subject)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login はIDトークンを検証し、ユーザーを検索（なければ作成）してアクセストークンを発行する。
func (s *Service) Login(ctx context.Context, rawIDToken string) (*Result, error) {
	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.FindOrCreateByGoogle(ctx, identity.Subject, identity.Email, identity.Name)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return s.issue(user)
}

// CurrentUser はアクセストークンのユーザーIDからユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return s.directory.FindByID(ctx, userID)
}

func (s *Service) issue(user *model.User) (*Result, error) {
	token, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	return &Result{
		User:        user,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}
