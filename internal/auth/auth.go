// Package auth implements local email/password accounts, guest access and the
// signed bearer tokens that carry either identity.
package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/gtank/cryptopasta"
	"github.com/pkg/errors"

	"hit/internal/model"
	"hit/internal/store"
)

var (
	ErrEmailTaken       = errors.New("An account with this email already exists.")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters.")
	ErrInvalidEmail     = errors.New("Please enter a valid email address.")
	ErrAccountNotFound  = errors.New("No account found with this email.")
	ErrWrongPassword    = errors.New("Incorrect password.")
	ErrInvalidToken     = errors.New("invalid or expired token")
)

const (
	MinPasswordLength = 6
	tokenIssuer       = "hit-auth"
	guestUID          = store.GuestKey
)

type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Guest       bool   `json:"guest"`
}

// UserKey is where this identity's statistics are stored.
func (i Identity) UserKey() string {
	if i.Guest {
		return store.GuestKey
	}
	return store.UserKey(i.UID)
}

var GuestIdentity = Identity{UID: guestUID, DisplayName: "Guest Scribe", Guest: true}

type Session struct {
	Identity
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
}

type Service struct {
	accounts store.AccountRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func New(accounts store.AccountRepository, cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	return &Service{
		accounts: accounts,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}, nil
}

// SignUp creates an account. Checks run in a fixed order: duplicate email,
// password length, then email shape.
func (s *Service) SignUp(email, password, displayName string) (Session, error) {
	email = store.NormalizeEmail(email)
	_, exists, err := s.accounts.GetAccountByEmail(email)
	if err != nil {
		return Session{}, errors.Wrap(err, "lookup account")
	}
	if exists {
		return Session{}, ErrEmailTaken
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrPasswordTooShort
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return Session{}, ErrInvalidEmail
	}

	hash, err := cryptopasta.HashPassword([]byte(password))
	if err != nil {
		return Session{}, errors.Wrap(err, "hash password")
	}
	account := model.Account{
		UID:          newUID(s.now()),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.CreateAccount(account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, errors.Wrap(err, "create account")
	}
	return s.issue(identityOf(account))
}

func (s *Service) SignIn(email, password string) (Session, error) {
	account, ok, err := s.accounts.GetAccountByEmail(store.NormalizeEmail(email))
	if err != nil {
		return Session{}, errors.Wrap(err, "lookup account")
	}
	if !ok {
		return Session{}, ErrAccountNotFound
	}
	if err := cryptopasta.CheckPasswordHash([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrWrongPassword
	}
	return s.issue(identityOf(account))
}

// Guest issues a token for the shared guest profile.
func (s *Service) Guest() (Session, error) {
	return s.issue(GuestIdentity)
}

type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Guest bool   `json:"guest,omitempty"`
	jwt.StandardClaims
}

func (s *Service) issue(identity Identity) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	c := claims{
		Email: identity.Email,
		Name:  identity.DisplayName,
		Guest: identity.Guest,
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.UID,
			Issuer:    tokenIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign token")
	}
	return Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a bearer token and returns the identity it carries.
func (s *Service) ParseToken(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("bad alg %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Issuer != tokenIssuer || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	if c.ExpiresAt != 0 && !c.VerifyExpiresAt(s.now().Unix(), true) {
		return Identity{}, ErrInvalidToken
	}
	if c.Guest {
		return GuestIdentity, nil
	}
	identity, err := s.Account(c.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	return identity, nil
}

// Account returns the stored identity for uid, store.ErrNotFound once the
// account is gone.
func (s *Service) Account(uid string) (Identity, error) {
	account, ok, err := s.accounts.GetAccount(uid)
	if err != nil {
		return Identity{}, errors.Wrap(err, "lookup account")
	}
	if !ok {
		return Identity{}, errors.Wrapf(store.ErrNotFound, "account %s", uid)
	}
	return identityOf(account), nil
}

func identityOf(account model.Account) Identity {
	return Identity{UID: account.UID, Email: account.Email, DisplayName: account.DisplayName}
}

func newUID(now time.Time) string {
	return "user_" + strconv.FormatInt(now.UnixMilli(), 36) + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
