// Package auth はパスワード認証によるIdentity Providerと、ログインセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/hitoshi/sixtyk/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// localDomain はユーザー名のみで登録した場合に補う識別子のドメイン。
const localDomain = "game.local"

// maxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const maxPasswordBytes = 72

// fallbackNameLength は表示名を導出できない場合に使うユーザーIDの先頭文字数。
const fallbackNameLength = 6

// NameSanitizer は表示名を保存前に無害化する。
type NameSanitizer interface {
	SanitizeName(name string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int // セッション有効期間（秒）
	MinPasswordLength int // 0の場合は6
	BcryptCost        int // 0の場合はbcrypt.DefaultCost
}

// Profile はサインアップ時に任意で渡すプロフィール。
type Profile struct {
	DisplayName string
}

// Service はIdentity Providerとしての認証ロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   NameSanitizer
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer NameSanitizer,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		config:      config,
		logger:      logger,
	}
}

// NormalizeIdentifier は識別子を小文字化し、ユーザー名のみの場合は "@game.local" を補う。
func NormalizeIdentifier(identifier string) string {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return ""
	}
	if !strings.Contains(id, "@") {
		id = id + "@" + localDomain
	}
	return id
}

// ResolveDisplayName はユーザーの表示名を決定する。
// 保存済み表示名 → 識別子のローカル部 → ユーザーIDの先頭6文字 の順に採用する。
func ResolveDisplayName(user *model.User) string {
	if user == nil {
		return ""
	}
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	if len(user.ID) > fallbackNameLength {
		return user.ID[:fallbackNameLength]
	}
	return user.ID
}

// SignUp は新しいプレイヤーを登録する。
// 登録済みの識別子の場合はauthカテゴリのエラー、入力不備はvalidationカテゴリのエラーを返す。
func (s *Service) SignUp(ctx context.Context, identifier, credential string, profile Profile) error {
	email := NormalizeIdentifier(identifier)
	if email == "" {
		return model.NewValidationError("identifier", "必須です")
	}
	if credential == "" {
		return model.NewValidationError("password", "必須です")
	}
	if utf8.RuneCountInString(credential) < s.config.MinPasswordLength {
		return model.NewValidationError("password", fmt.Sprintf("%d文字以上で入力してください", s.config.MinPasswordLength))
	}
	if len(credential) > maxPasswordBytes {
		return model.NewValidationError("password", fmt.Sprintf("%dバイト以内で入力してください", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  s.sanitize(profile.DisplayName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.NewDuplicateRegistrationError(email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return nil
}

// SignIn は資格情報を検証し、解決済みIdentityとセッションを返す。
func (s *Service) SignIn(ctx context.Context, identifier, credential string) (model.Identity, *model.Session, error) {
	email := NormalizeIdentifier(identifier)
	if email == "" || credential == "" {
		return model.Identity{}, nil, model.NewValidationError("credentials", "ユーザー名とパスワードを入力してください")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return model.Identity{}, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.Identity{}, nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(credential)); err != nil {
		return model.Identity{}, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return model.Identity{}, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("user signed in", slog.String("user_id", user.ID))
	return model.Identity{UserID: user.ID, DisplayName: ResolveDisplayName(user)}, session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("user signed out")
	return nil
}

// GetCurrentIdentity はセッションから現在のIdentityを取得する。
// 未ログイン・期限切れの場合はokがfalseになる。
func (s *Service) GetCurrentIdentity(ctx context.Context, sessionID string) (model.Identity, bool, error) {
	if sessionID == "" {
		return model.Identity{}, false, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return model.Identity{}, false, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.Identity{}, false, nil
	}

	return model.Identity{UserID: user.ID, DisplayName: ResolveDisplayName(user)}, true, nil
}

// ChangeDisplayName はプレイヤーの表示名を変更し、保存した名前を返す。
func (s *Service) ChangeDisplayName(ctx context.Context, userID, name string) (string, error) {
	clean := s.sanitize(name)
	if clean == "" {
		return "", model.NewValidationError("display_name", "空にはできません")
	}
	if err := s.userRepo.UpdateDisplayName(ctx, userID, clean); err != nil {
		return "", fmt.Errorf("failed to update display name: %w", err)
	}
	s.logger.Info("display name changed", slog.String("user_id", userID))
	return clean, nil
}

func (s *Service) sanitize(name string) string {
	name = strings.TrimSpace(name)
	if s.sanitizer != nil {
		name = strings.TrimSpace(s.sanitizer.SanitizeName(name))
	}
	return name
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
