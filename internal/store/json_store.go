package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"hit/internal/model"
)

type fileState struct {
	Stats    map[string]model.UserStats `json:"stats"`
	Accounts map[string]model.Account   `json:"accounts"`
}

// JSONStore keeps every user's snapshot in one JSON document, rewritten
// atomically on each change.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		filePath: filePath,
		state: fileState{
			Stats:    make(map[string]model.UserStats),
			Accounts: make(map[string]model.Account),
		},
	}
	if err := s.load(); err != nil {
		return nil, errors.Wrapf(err, "load %s", filePath)
	}
	return s, nil
}

func (s *JSONStore) Load(userKey string) (model.UserStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.state.Stats[userKey]
	if !ok {
		return model.UserStats{}, false, nil
	}
	return normalizeStats(stats), true, nil
}

func (s *JSONStore) Save(userKey string, stats model.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.state.Stats[userKey]
	s.state.Stats[userKey] = stats
	if err := s.persistLocked(); err != nil {
		if had {
			s.state.Stats[userKey] = prev
		} else {
			delete(s.state.Stats, userKey)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Delete(userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Stats[userKey]; !ok {
		return nil
	}
	delete(s.state.Stats, userKey)
	return s.persistLocked()
}

func (s *JSONStore) CreateAccount(account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.Email = NormalizeEmail(account.Email)
	if _, ok := s.state.Accounts[account.UID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.state.Accounts {
		if existing.Email == account.Email {
			return ErrAlreadyExists
		}
	}
	s.state.Accounts[account.UID] = account
	if err := s.persistLocked(); err != nil {
		delete(s.state.Accounts, account.UID)
		return err
	}
	return nil
}

func (s *JSONStore) GetAccount(uid string) (model.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.state.Accounts[uid]
	return account, ok, nil
}

func (s *JSONStore) GetAccountByEmail(email string) (model.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = NormalizeEmail(email)
	for _, account := range s.state.Accounts {
		if account.Email == email {
			return account, true, nil
		}
	}
	return model.Account{}, false, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Stats == nil {
		state.Stats = make(map[string]model.UserStats)
	}
	if state.Accounts == nil {
		state.Accounts = make(map[string]model.Account)
	}
	s.state = state
	return nil
}

func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.Wrap(err, "write state")
	}
	return errors.Wrap(os.Rename(tmpPath, s.filePath), "replace state")
}
