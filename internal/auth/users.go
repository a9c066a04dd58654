package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"budget/internal/core"
	"budget/internal/storage"

	"github.com/badoux/checkmail"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials hides whether the email or the secret was wrong.
var ErrInvalidCredentials = errors.New("invalid email or secret")

const (
	minSecretLength = 4
	maxNameLength   = 100
	maxEmailLength  = 254
)

// Session is what a successful login hands back to the client.
type Session struct {
	User      core.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UserService struct {
	store      storage.UserStore
	tokens     *TokenService
	bcryptCost int
	now        func() time.Time
}

func NewUserService(store storage.UserStore, tokens *TokenService, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{store: store, tokens: tokens, bcryptCost: bcryptCost, now: time.Now}
}

func validateEmailAddress(email string) error {
	if len(email) > maxEmailLength {
		return core.NewValidationError("email", "too long")
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return core.NewValidationError("email", "invalid format")
	}
	return nil
}

// Register creates a user; the secret is normalized and stored as a bcrypt hash.
func (s *UserService) Register(ctx context.Context, name, email, secret string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = core.NormalizeEmail(email)
	secret = core.NormalizeSecret(secret)

	var ve core.ValidationErrors
	if name == "" {
		ve.Add(core.NewValidationError("name", "cannot be empty"))
	} else if utf8.RuneCountInString(name) > maxNameLength {
		ve.Add(core.NewValidationError("name", "too long"))
	}
	ve.Add(validateEmailAddress(email))
	if utf8.RuneCountInString(secret) < minSecretLength {
		ve.Add(core.NewValidationError("secret", fmt.Sprintf("must be at least %d characters", minSecretLength)))
	}
	if err := ve.Err(); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash secret: %w", err)
	}

	return s.store.CreateUser(ctx, core.User{
		Name:       name,
		Email:      email,
		SecretHash: string(hash),
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	})
}

// Authenticate resolves credentials and issues a token scoped to the user.
func (s *UserService) Authenticate(ctx context.Context, email, secret string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(core.NormalizeSecret(secret))); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}
