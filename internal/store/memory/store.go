// Package memory is an in-process store with the same guarantees as the
// postgres store: unique email and username, reset tokens cascading with their
// account, single-winner token consumption, and updated_at that never goes back.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"accountd/internal/domain"
)

type Store struct {
	mu sync.Mutex

	nextAccountID int64
	nextTokenID   int64
	accounts      map[int64]*domain.AccountWithSecret
	tokens        map[string]*domain.ResetToken
}

func New() *Store {
	return &Store{
		accounts: make(map[int64]*domain.AccountWithSecret),
		tokens:   make(map[string]*domain.ResetToken),
	}
}

func (s *Store) CreateAccount(_ context.Context, in domain.NewAccount) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(in.Email)
	if err := s.checkUniqueLocked(0, &email, &in.Username); err != nil {
		return domain.Account{}, err
	}

	s.nextAccountID++
	a := &domain.AccountWithSecret{
		Account: domain.Account{
			ID:            s.nextAccountID,
			Email:         email,
			Username:      in.Username,
			FirstName:     cloneString(in.FirstName),
			LastName:      cloneString(in.LastName),
			IsAdmin:       in.IsAdmin,
			IsActive:      in.IsActive,
			EmailVerified: in.EmailVerified,
			CreatedAt:     in.CreatedAt,
			UpdatedAt:     in.CreatedAt,
		},
		PasswordHash: in.PasswordHash,
	}
	s.accounts[a.ID] = a
	return cloneAccount(a.Account), nil
}

func (s *Store) GetAccountByID(_ context.Context, id int64) (domain.AccountWithSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.AccountWithSecret{}, domain.ErrNotFound
	}
	return domain.AccountWithSecret{Account: cloneAccount(a.Account), PasswordHash: a.PasswordHash}, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (domain.AccountWithSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return domain.AccountWithSecret{Account: cloneAccount(a.Account), PasswordHash: a.PasswordHash}, nil
		}
	}
	return domain.AccountWithSecret{}, domain.ErrNotFound
}

func (s *Store) GetAccountByUsername(_ context.Context, username string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return cloneAccount(a.Account), nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (s *Store) UpdateAccount(_ context.Context, id int64, u domain.AccountUpdate) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}

	var email *string
	if u.Email != nil {
		e := domain.NormalizeEmail(*u.Email)
		email = &e
	}
	if err := s.checkUniqueLocked(id, email, u.Username); err != nil {
		return domain.Account{}, err
	}

	if email != nil {
		a.Email = *email
	}
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.FirstName.Set {
		a.FirstName = cloneString(u.FirstName.Value)
	}
	if u.LastName.Set {
		a.LastName = cloneString(u.LastName.Value)
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.IsAdmin != nil {
		a.IsAdmin = *u.IsAdmin
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	if u.EmailVerified != nil {
		a.EmailVerified = *u.EmailVerified
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		a.LastLoginAt = &t
	}
	if u.UpdatedAt.After(a.UpdatedAt) {
		a.UpdatedAt = u.UpdatedAt
	}
	return cloneAccount(a.Account), nil
}

func (s *Store) ListAccounts(_ context.Context, limit, offset int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, cloneAccount(a.Account))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Account{}, nil
	}
	end := len(all)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (s *Store) CountAccounts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.accounts, id)
	for hash, t := range s.tokens {
		if t.AccountID == id {
			delete(s.tokens, hash)
		}
	}
	return nil
}

func (s *Store) CreateResetToken(_ context.Context, t domain.ResetToken) (domain.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[t.AccountID]; !ok {
		return domain.ResetToken{}, domain.ErrNotFound
	}
	if _, dup := s.tokens[t.TokenHash]; dup {
		return domain.ResetToken{}, domain.ErrConflict
	}

	s.nextTokenID++
	stored := domain.ResetToken{
		ID:        s.nextTokenID,
		AccountID: t.AccountID,
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
	s.tokens[t.TokenHash] = &stored
	return stored, nil
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	switch {
	case !ok:
		return 0, domain.ErrNotFound
	case t.Used:
		return 0, domain.ErrResetTokenUsed
	case !now.Before(t.ExpiresAt):
		return 0, domain.ErrResetTokenExpired
	}
	t.Used = true
	usedAt := now
	t.UsedAt = &usedAt
	return t.AccountID, nil
}

func (s *Store) InvalidateResetTokens(_ context.Context, accountID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tokens {
		if t.AccountID == accountID && !t.Used {
			t.Used = true
			usedAt := now
			t.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

func (s *Store) ListResetTokens(_ context.Context, accountID int64) ([]domain.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ResetToken
	for _, t := range s.tokens {
		if t.AccountID == accountID {
			c := *t
			if t.UsedAt != nil {
				u := *t.UsedAt
				c.UsedAt = &u
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) PurgeResetTokens(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.tokens {
		if t.ExpiresAt.Before(cutoff) || (t.Used && t.UsedAt != nil && t.UsedAt.Before(cutoff)) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// checkUniqueLocked reports every field that collides with an account other than self.
func (s *Store) checkUniqueLocked(self int64, email, username *string) error {
	var errs []error
	for id, a := range s.accounts {
		if id == self {
			continue
		}
		if email != nil && a.Email == *email {
			errs = append(errs, domain.ErrEmailTaken)
		}
		if username != nil && a.Username == *username {
			errs = append(errs, domain.ErrUsernameTaken)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

func cloneAccount(a domain.Account) domain.Account {
	a.FirstName = cloneString(a.FirstName)
	a.LastName = cloneString(a.LastName)
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		a.LastLoginAt = &t
	}
	return a
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
