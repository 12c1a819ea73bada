package store

import (
	"strings"

	"github.com/pkg/errors"

	"hit/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// GuestKey is the storage key for the unauthenticated practice profile.
const GuestKey = "guest"

// StatsRepository persists one UserStats snapshot per user key. Save is a
// full overwrite; the last writer wins.
type StatsRepository interface {
	Load(userKey string) (model.UserStats, bool, error)
	Save(userKey string, stats model.UserStats) error
	Delete(userKey string) error
}

// AccountRepository stores local accounts. Emails are unique and compared
// in their normalised (lower-case, trimmed) form.
type AccountRepository interface {
	CreateAccount(account model.Account) error
	GetAccount(uid string) (model.Account, bool, error)
	GetAccountByEmail(email string) (model.Account, bool, error)
}

type Store interface {
	StatsRepository
	AccountRepository
}

// UserKey maps an account uid to its stats key; an empty uid is the guest.
func UserKey(uid string) string {
	uid = strings.TrimSpace(uid)
	if uid == "" || uid == GuestKey {
		return GuestKey
	}
	return "user:" + uid
}

// NormalizeEmail is the canonical form emails are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeStats restores the invariants a hand-edited or older snapshot may
// have lost.
func normalizeStats(stats model.UserStats) model.UserStats {
	if stats.History == nil {
		stats.History = []model.PracticeSession{}
	}
	stats.TotalSessions = len(stats.History)
	return stats
}
