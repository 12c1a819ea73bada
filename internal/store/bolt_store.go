package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"hit/internal/model"
)

var (
	bktUserStats    = []byte("user_stats")
	bktAccounts     = []byte("accounts")
	bktAccountEmail = []byte("account_email")
)

// BoltStore is an embedded key/value engine with one JSON blob per key.
type BoltStore struct {
	db        *bolt.DB
	closeFunc func() error
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bktUserStats, bktAccounts, bktAccountEmail} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}
	return &BoltStore{db: db, closeFunc: db.Close}, nil
}

// NewTempBoltStore opens a store in the temp dir that removes itself on Close.
func NewTempBoltStore() (*BoltStore, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("hit-%s.db", uuid.NewString()))
	st, err := NewBoltStore(path)
	if err != nil {
		return nil, err
	}
	originalClose := st.closeFunc
	st.closeFunc = func() error {
		if err := originalClose(); err != nil {
			return err
		}
		return os.Remove(path)
	}
	return st, nil
}

func (s *BoltStore) Close() error {
	return s.closeFunc()
}

func (s *BoltStore) Load(userKey string) (model.UserStats, bool, error) {
	var stats model.UserStats
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bktUserStats).Get([]byte(userKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &stats)
	})
	if err != nil {
		return model.UserStats{}, false, errors.Wrapf(err, "load stats of %s", userKey)
	}
	if !found {
		return model.UserStats{}, false, nil
	}
	return normalizeStats(stats), true, nil
}

func (s *BoltStore) Save(userKey string, stats model.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "encode stats")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return errors.Wrap(tx.Bucket(bktUserStats).Put([]byte(userKey), data), "put stats")
	})
}

func (s *BoltStore) Delete(userKey string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return errors.Wrap(tx.Bucket(bktUserStats).Delete([]byte(userKey)), "delete stats")
	})
}

func (s *BoltStore) CreateAccount(account model.Account) error {
	account.Email = NormalizeEmail(account.Email)
	data, err := json.Marshal(account)
	if err != nil {
		return errors.Wrap(err, "encode account")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bktAccounts)
		emails := tx.Bucket(bktAccountEmail)
		if accounts.Get([]byte(account.UID)) != nil || emails.Get([]byte(account.Email)) != nil {
			return ErrAlreadyExists
		}
		if err := accounts.Put([]byte(account.UID), data); err != nil {
			return errors.Wrap(err, "put account")
		}
		return errors.Wrap(emails.Put([]byte(account.Email), []byte(account.UID)), "put email index")
	})
}

func (s *BoltStore) GetAccount(uid string) (model.Account, bool, error) {
	var account model.Account
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		account, found, err = getAccount(tx, []byte(uid))
		return err
	})
	return account, found, err
}

func (s *BoltStore) GetAccountByEmail(email string) (model.Account, bool, error) {
	var account model.Account
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		uid := tx.Bucket(bktAccountEmail).Get([]byte(NormalizeEmail(email)))
		if uid == nil {
			return nil
		}
		var err error
		account, found, err = getAccount(tx, uid)
		return err
	})
	return account, found, err
}

func getAccount(tx *bolt.Tx, uid []byte) (model.Account, bool, error) {
	data := tx.Bucket(bktAccounts).Get(uid)
	if data == nil {
		return model.Account{}, false, nil
	}
	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return model.Account{}, false, errors.Wrap(err, "decode account")
	}
	return account, true, nil
}
