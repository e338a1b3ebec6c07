package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
)

// UsernameService rotates account usernames: one active name per account plus
// a bounded history of inactive names that keep their string reserved until
// expiry. Structurally this is the same lease pool as the code spaces, keyed
// by account instead of link.
type UsernameService struct {
	store     repository.Store
	retention time.Duration
	now       func() time.Time
}

// NewUsernameService returns a service retiring old usernames for the given
// retention window.
func NewUsernameService(store repository.Store, retention time.Duration) *UsernameService {
	return &UsernameService{
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// IsAvailable reports whether no account currently reserves the candidate,
// either actively or through an unexpired inactive row.
func (s *UsernameService) IsAvailable(ctx context.Context, candidate string) (bool, error) {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return false, nil
	}
	reserved, err := s.store.Usernames().ReservedByOther(ctx, candidate, 0, s.now())
	if err != nil {
		return false, fmt.Errorf("check username reservation: %w", err)
	}
	return !reserved, nil
}

// SetActive makes newUsername the account's active name. The current active
// row is retired with the retention expiry; when the inactive history would
// exceed its cap the soonest-expiring row is deleted first, freeing its
// string for global reuse immediately. The whole rotation is one transaction,
// so a crash can never leave an account without an active row.
func (s *UsernameService) SetActive(ctx context.Context, userID int64, newUsername string) error {
	name := strings.ToLower(strings.TrimSpace(newUsername))
	if name == "" {
		return ErrUsernameTaken
	}

	return s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		now := s.now()

		reserved, err := tx.Usernames().ReservedByOther(ctx, name, userID, now)
		if err != nil {
			return fmt.Errorf("check username reservation: %w", err)
		}
		if reserved {
			return ErrUsernameTaken
		}

		// Lapsed reservations of other accounts still occupy the unique
		// index; clear them before inserting.
		if err := tx.Usernames().DeleteExpiredByName(ctx, name, now); err != nil {
			return fmt.Errorf("clear lapsed reservations: %w", err)
		}

		rows, err := tx.Usernames().ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list usernames: %w", err)
		}

		var active *model.Username
		var inactive []model.Username
		reactivate := false
		for i := range rows {
			switch {
			case rows[i].Active:
				active = &rows[i]
			default:
				inactive = append(inactive, rows[i])
				if rows[i].Username == name {
					reactivate = true
				}
			}
		}

		if active != nil && active.Username == name {
			// Already the active name; nothing to rotate.
			return nil
		}

		if len(inactive) >= model.MaxInactiveUsernames {
			// ListByUser orders soonest expiry first; drop the oldest row
			// that is not the one being reactivated.
			for _, row := range inactive {
				if row.Username == name {
					continue
				}
				if err := tx.Usernames().Delete(ctx, userID, row.Username); err != nil {
					return fmt.Errorf("trim username history: %w", err)
				}
				break
			}
		}

		if active != nil {
			if err := tx.Usernames().Deactivate(ctx, userID, active.Username, now.Add(s.retention)); err != nil {
				return fmt.Errorf("deactivate current username: %w", err)
			}
		}

		if reactivate {
			if err := tx.Usernames().Activate(ctx, userID, name); err != nil {
				return fmt.Errorf("reactivate username: %w", err)
			}
			return nil
		}

		if err := tx.Usernames().Insert(ctx, userID, name); err != nil {
			if repository.IsDuplicateKey(err) {
				// Raced another account to the same name.
				return ErrUsernameTaken
			}
			return fmt.Errorf("insert username: %w", err)
		}
		return nil
	})
}

// SwitchActive reactivates one of the account's unexpired inactive usernames.
// Fails when the target does not exist for the account, is already active or
// has lapsed past its retention; that is a caller error, never retried.
func (s *UsernameService) SwitchActive(ctx context.Context, userID int64, target string) error {
	name := strings.ToLower(strings.TrimSpace(target))

	return s.store.RunInTransaction(ctx, func(tx repository.Store) error {
		now := s.now()

		rows, err := tx.Usernames().ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list usernames: %w", err)
		}

		var active *model.Username
		found := false
		for i := range rows {
			if rows[i].Active {
				active = &rows[i]
				continue
			}
			// A lapsed row no longer reserves the name; reclaiming it goes
			// through SetActive and the global reservation check.
			if rows[i].Username == name && rows[i].Reserved(now) {
				found = true
			}
		}
		if !found {
			return ErrUsernameNotSwitchable
		}

		if active != nil {
			if err := tx.Usernames().Deactivate(ctx, userID, active.Username, now.Add(s.retention)); err != nil {
				return fmt.Errorf("deactivate current username: %w", err)
			}
		}

		if err := tx.Usernames().Activate(ctx, userID, name); err != nil {
			return fmt.Errorf("activate username: %w", err)
		}
		return nil
	})
}

// ResolveActive maps an active username to its account id. Used on the affix
// redirect path.
func (s *UsernameService) ResolveActive(ctx context.Context, username string) (int64, error) {
	row, err := s.store.Usernames().GetActiveByName(ctx, strings.ToLower(username))
	if err != nil {
		return 0, err
	}
	return row.UserID, nil
}
