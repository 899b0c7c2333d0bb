package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/auth"
	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterParams creates a new user account.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginResult carries the minted token and the authenticated user.
type LoginResult struct {
	Token string
	User  *models.User
}

// Service manages user registration and authentication.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams wires the accounts service dependencies.
type ServiceParams struct {
	Repo     Repository
	Ledger   ledger.Service
	TxRunner txRunner
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Ledgers  config.LedgerConfig
	Logger   *logger.Logger
}

type service struct {
	repo        Repository
	ledger      ledger.Service
	txRunner    txRunner
	jwtConfig   config.JWTConfig
	passwords   config.PasswordConfig
	signupGrant int64
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires an accounts service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		ledger:      params.Ledger,
		txRunner:    params.TxRunner,
		jwtConfig:   params.JWT,
		passwords:   params.Password,
		signupGrant: params.Ledgers.SignupGrant,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates the user and their credit account in one transaction so a
// half-provisioned signup can never spend or hold credits.
func (s *service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(params.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up email")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(params.Password, s.passwords)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(params.DisplayName),
		IsActive:     true,
	}
	if user.DisplayName == "" {
		user.DisplayName = email
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			// FindByEmail above is not a lock; a concurrent register can land
			// between it and this insert, and the unique index breaks the tie.
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		return s.ledger.ProvisionAccount(ctx, tx, user.ID, s.signupGrant)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up email")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtConfig, now, auth.AccessTokenPayload{
		UserID: user.ID,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("touch last login: %v", err))
	}

	return &LoginResult{Token: token, User: user}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}
