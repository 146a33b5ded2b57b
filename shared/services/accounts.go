package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	utils "nko-map-backend/shared/utils/auth"
	"nko-map-backend/shared/utils/query"
)

const resetTokenBytes = 32

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Accounts owns registration, login, profile edits and password changes.
type Accounts struct {
	users    repository.UserRepository
	tokens   *utils.TokenService
	mailer   PasswordResetMailer
	resetTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewAccounts(users repository.UserRepository, tokens *utils.TokenService, mailer PasswordResetMailer, resetTTL time.Duration, logger *zap.Logger) *Accounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accounts{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		resetTTL: resetTTL,
		now:      time.Now,
		logger:   logger,
	}
}

func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = utils.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	fields := map[string]string{}
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return nil, apperr.Validation("Все поля обязательны для заполнения")
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := utils.ValidatePhone(in.Phone); err != nil {
		fields["phone"] = err.Error()
	}
	if err := utils.ValidateMaxLength(in.FirstName, "firstName", 100); err != nil {
		fields["firstName"] = err.Error()
	}
	if err := utils.ValidateMaxLength(in.LastName, "lastName", 100); err != nil {
		fields["lastName"] = err.Error()
	}

	hash, err := utils.NewHashedPassword(in.Password)
	if err != nil {
		if utils.IsPasswordRejected(err) {
			fields["password"] = err.Error()
		} else {
			return nil, apperr.Internal("Ошибка сервера при регистрации", err)
		}
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("Проверьте правильность заполнения полей", fields)
	}

	user := &models.User{
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      models.RoleUser,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}

	a.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return a.issue(user)
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email и пароль обязательны")
	}

	invalid := apperr.Unauthenticated("Неверный email или пароль")
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.Password.Matches(password) {
		return nil, invalid
	}

	return a.issue(user)
}

func (a *Accounts) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal("Ошибка выдачи токена", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (a *Accounts) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return a.users.FindByID(ctx, id)
}

func (a *Accounts) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*models.User, error) {
	changes := repository.ProfileChanges{}
	fields := map[string]string{}

	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if v == "" {
			fields["firstName"] = "firstName is required"
		} else if err := utils.ValidateMaxLength(v, "firstName", 100); err != nil {
			fields["firstName"] = err.Error()
		}
		changes.FirstName = &v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if v == "" {
			fields["lastName"] = "lastName is required"
		} else if err := utils.ValidateMaxLength(v, "lastName", 100); err != nil {
			fields["lastName"] = err.Error()
		}
		changes.LastName = &v
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if err := utils.ValidatePhone(v); err != nil {
			fields["phone"] = err.Error()
		}
		changes.Phone = &v
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("Проверьте правильность заполнения полей", fields)
	}

	return a.users.UpdateProfile(ctx, id, changes)
}

func (a *Accounts) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := a.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.Password.Matches(current) {
		return apperr.ValidationFields("Неверный текущий пароль", map[string]string{"currentPassword": "does not match"})
	}

	hash, err := utils.NewHashedPassword(next)
	if err != nil {
		return passwordError(err)
	}
	return a.users.UpdatePassword(ctx, id, hash)
}

// RequestPasswordReset emails a one-time reset link. Unknown emails succeed
// silently so the endpoint cannot be used to enumerate accounts.
func (a *Accounts) RequestPasswordReset(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return apperr.Validation("Укажите корректный email")
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := utils.GenerateRandomToken(resetTokenBytes)
	if err != nil {
		return apperr.Internal("Ошибка генерации токена", err)
	}
	if err := a.users.SetResetToken(ctx, user.ID, utils.HashToken(token), a.now().Add(a.resetTTL)); err != nil {
		return err
	}

	if a.mailer != nil {
		if err := a.mailer.SendPasswordReset(ctx, user.Email, user.FullName(), token, int(a.resetTTL.Minutes())); err != nil {
			a.logger.Error("failed to send password reset email", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (a *Accounts) ResetPassword(ctx context.Context, token, next string) error {
	invalid := apperr.Validation("Ссылка для восстановления пароля недействительна или устарела")
	if strings.TrimSpace(token) == "" {
		return invalid
	}

	user, err := a.users.FindByResetToken(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return invalid
		}
		return err
	}
	if user.ResetPasswordExpires == nil || a.now().After(*user.ResetPasswordExpires) {
		return invalid
	}

	hash, err := utils.NewHashedPassword(next)
	if err != nil {
		return passwordError(err)
	}
	return a.users.UpdatePassword(ctx, user.ID, hash)
}

func (a *Accounts) ListUsers(ctx context.Context, page query.Page) ([]models.User, int64, error) {
	return a.users.List(ctx, page)
}

func passwordError(err error) error {
	if utils.IsPasswordRejected(err) {
		return apperr.ValidationFields("Недопустимая длина пароля", map[string]string{"password": err.Error()})
	}
	return apperr.Internal("Ошибка обработки пароля", err)
}
