// Package user はユーザー管理のドメインロジックを提供する。
// 検証済みのGoogleアカウントとアプリケーションのユーザーを対応付ける。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/healthtrack/internal/model"
	"github.com/hitoshi/healthtrack/internal/repository"
)

// Directory はユーザーの検索と作成を担うサービス。
type Directory struct {
	userRepo     repository.UserRepository
	identityRepo repository.IdentityRepository
	now          func() time.Time
}

// NewDirectory はDirectoryの新しいインスタンスを生成する。
func NewDirectory(userRepo repository.UserRepository, identityRepo repository.IdentityRepository) *Directory {
	return &Directory{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		now:          time.Now,
	}
}

// FindOrCreateByGoogle はGoogleのsubjectでユーザーを検索し、存在しなければ作成する。
// 検索順序: identity(google, subject) → email一致ユーザーへidentityを紐付け → ユーザーとidentityを新規作成。
func (d *Directory) FindOrCreateByGoogle(ctx context.Context, subjectID, email, name string) (*model.User, error) {
	identity, err := d.identityRepo.FindByProviderAndProviderUserID(ctx, model.ProviderGoogle, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := d.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, model.NewUserNotFoundError()
		}
		return user, nil
	}

	existing, err := d.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if existing != nil {
		link := d.newIdentity(existing.ID, subjectID)
		if err := d.identityRepo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return d.findBySubject(ctx, subjectID)
			}
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		slog.Info("google identity linked",
			slog.String("user_id", existing.ID),
		)
		return existing, nil
	}

	user := d.newUser(email, name)
	if err := d.userRepo.CreateWithIdentity(ctx, user, d.newIdentity(user.ID, subjectID)); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			// 同時ログインで先行リクエストが作成済みの場合は再検索する
			return d.findBySubject(ctx, subjectID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ProviderGoogle),
	)

	return user, nil
}

// CreateIfAbsent はサインアップ用にユーザーを作成する。
// 同じメールアドレスのユーザーが存在する場合はUserAlreadyExistsを返す。
// subjectIDが空でなければgoogleのidentityも同時に作成する。
func (d *Directory) CreateIfAbsent(ctx context.Context, email, name, subjectID string) (*model.User, error) {
	existing, err := d.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserAlreadyExistsError()
	}

	user := d.newUser(email, name)
	if subjectID == "" {
		err = d.userRepo.Create(ctx, user)
	} else {
		err = d.userRepo.CreateWithIdentity(ctx, user, d.newIdentity(user.ID, subjectID))
	}
	if errors.Is(err, repository.ErrUniqueViolation) {
		return nil, model.NewUserAlreadyExistsError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// FindByID はIDでユーザーを取得する。存在しない場合はUserNotFoundを返す。
func (d *Directory) FindByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := d.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (d *Directory) findBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	identity, err := d.identityRepo.FindByProviderAndProviderUserID(ctx, model.ProviderGoogle, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return nil, model.NewUserAlreadyExistsError()
	}
	return d.FindByID(ctx, identity.UserID)
}

func (d *Directory) newUser(email, name string) *model.User {
	now := d.now()
	return &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d *Directory) newIdentity(userID, subjectID string) *model.Identity {
	return &model.Identity{
		ID:             uuid.New().String(),
		UserID:         userID,
		Provider:       model.ProviderGoogle,
		ProviderUserID: subjectID,
		CreatedAt:      d.now(),
	}
}
