package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/domain/user"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/auth"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

var tracer = otel.Tracer("openforge/usecase/auth")

// LoginUseCase signs the gateway operator in to the admin API.
type LoginUseCase struct {
	users  user.Repository
	tokens *auth.JWTService
	logger logger.Logger
}

func NewLoginUseCase(repo user.Repository, jwtSvc *auth.JWTService, log logger.Logger) *LoginUseCase {
	return &LoginUseCase{users: repo, tokens: jwtSvc, logger: log}
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginOutput struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (uc *LoginUseCase) Execute(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	u, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			span.RecordError(err)
			return nil, err
		}
		return nil, uc.reject(email)
	}
	if !auth.CheckPasswordHash(input.Password, u.PasswordHash) {
		return nil, uc.reject(email)
	}

	token, expiresAt, err := uc.tokens.Issue(u.ID)
	if err != nil {
		uc.logger.Error("Failed to issue operator token", err, zap.String("user_id", u.ID.String()))
		span.RecordError(err)
		return nil, apperror.NewInternal("failed to issue token", err)
	}

	metrics.Logins.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("user_id", u.ID.String()))
	uc.logger.Info("Operator signed in", zap.String("user_id", u.ID.String()))
	return &LoginOutput{AccessToken: token, ExpiresAt: expiresAt}, nil
}

// reject hides whether the email or the password was wrong.
func (uc *LoginUseCase) reject(email string) error {
	metrics.Logins.WithLabelValues("rejected").Inc()
	uc.logger.Warn("Rejected operator login", zap.String("email", email))
	return apperror.NewUnauthorized("email or password is incorrect", nil)
}
