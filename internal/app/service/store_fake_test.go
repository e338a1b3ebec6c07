package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
)

// fakeStore is an in-memory repository.Store. It enforces the same unique
// constraints as the Postgres schema so the collision paths of the
// allocators are exercised for real. A single mutex serializes everything.
type fakeStore struct {
	mu sync.Mutex

	links      map[int64]*model.Link
	nextLinkID int64

	slots      []*model.UltraSlot
	nextSlotID int64

	leases      map[int64]*model.DigitLease
	nextLeaseID int64

	usernames      []*model.Username
	nextUsernameID int64

	sessions      map[int64]*model.Session
	nextSessionID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:    make(map[int64]*model.Link),
		leases:   make(map[int64]*model.DigitLease),
		sessions: make(map[int64]*model.Session),
	}
}

// addSlots seeds a custom ultra inventory, so tests can exhaust a pool
// without walking the full code space.
func (f *fakeStore) addSlots(codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range codes {
		f.nextSlotID++
		f.slots = append(f.slots, &model.UltraSlot{ID: f.nextSlotID, Code: code})
	}
}

func (f *fakeStore) addLink(link model.Link) *model.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLinkID++
	link.ID = f.nextLinkID
	f.links[link.ID] = &link
	return &link
}

func (f *fakeStore) addLease(lease model.DigitLease) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLeaseID++
	lease.ID = f.nextLeaseID
	f.leases[lease.ID] = &lease
}

func (f *fakeStore) addSession(session model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSessionID++
	session.ID = f.nextSessionID
	f.sessions[session.ID] = &session
}

func (f *fakeStore) Links() repository.LinkRepository             { return &fakeLinks{f} }
func (f *fakeStore) UltraSlots() repository.UltraSlotRepository   { return &fakeSlots{f} }
func (f *fakeStore) DigitLeases() repository.DigitLeaseRepository { return &fakeLeases{f} }
func (f *fakeStore) Usernames() repository.UsernameRepository     { return &fakeUsernames{f} }
func (f *fakeStore) Sessions() repository.SessionRepository       { return &fakeSessions{f} }

func (f *fakeStore) RunInTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(f)
}

type fakeLinks struct{ f *fakeStore }

func (r *fakeLinks) Create(ctx context.Context, link *model.Link) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.links {
		if existing.QRCodeID == link.QRCodeID {
			return repository.ErrDuplicateKey
		}
		if link.Code != nil && existing.Code != nil && *existing.Code == *link.Code {
			return repository.ErrDuplicateKey
		}
	}
	r.f.nextLinkID++
	link.ID = r.f.nextLinkID
	stored := *link
	r.f.links[link.ID] = &stored
	return nil
}

func (r *fakeLinks) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	link, ok := r.f.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (r *fakeLinks) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, link := range r.f.links {
		if link.Code != nil && *link.Code == code {
			copied := *link
			return &copied, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (r *fakeLinks) GetByQRCodeID(ctx context.Context, qrCodeID string) (*model.Link, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, link := range r.f.links {
		if link.QRCodeID == qrCodeID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (r *fakeLinks) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Link, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var result []model.Link
	for _, link := range r.f.links {
		if link.UserID != nil && *link.UserID == userID {
			result = append(result, *link)
		}
	}
	return result, nil
}

func (r *fakeLinks) ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]model.Link, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var result []model.Link
	for _, link := range r.f.links {
		if link.SessionID != nil && *link.SessionID == sessionID {
			result = append(result, *link)
		}
	}
	return result, nil
}

func (r *fakeLinks) ListCodes(ctx context.Context) ([]string, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var result []string
	for _, link := range r.f.links {
		if link.Code != nil {
			result = append(result, *link.Code)
		}
	}
	return result, nil
}

func (r *fakeLinks) SetCode(ctx context.Context, id int64, code *string, space string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	link, ok := r.f.links[id]
	if !ok {
		return repository.ErrLinkNotFound
	}
	if code != nil {
		for _, existing := range r.f.links {
			if existing.ID != id && existing.Code != nil && *existing.Code == *code {
				return repository.ErrDuplicateKey
			}
		}
	}
	link.Code = code
	link.CodeSpace = space
	return nil
}

func (r *fakeLinks) IncrementViews(ctx context.Context, id int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if link, ok := r.f.links[id]; ok {
		link.Views++
	}
	return nil
}

func (r *fakeLinks) Delete(ctx context.Context, id int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	delete(r.f.links, id)
	return nil
}

type fakeSlots struct{ f *fakeStore }

func (r *fakeSlots) SeedInventory(ctx context.Context) error {
	return nil
}

func (r *fakeSlots) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var reclaimed int64
	for _, slot := range r.f.slots {
		if slot.ExpiresAt != nil && slot.ExpiresAt.Before(now) {
			slot.LinkID = nil
			slot.AssignedAt = nil
			slot.ExpiresAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (r *fakeSlots) SelectFirstFreeForUpdate(ctx context.Context) (*model.UltraSlot, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var free []*model.UltraSlot
	for _, slot := range r.f.slots {
		if slot.LinkID == nil {
			free = append(free, slot)
		}
	}
	if len(free) == 0 {
		return nil, repository.ErrNoFreeSlot
	}
	sort.Slice(free, func(i, j int) bool {
		if len(free[i].Code) != len(free[j].Code) {
			return len(free[i].Code) < len(free[j].Code)
		}
		return free[i].Code < free[j].Code
	})
	copied := *free[0]
	return &copied, nil
}

func (r *fakeSlots) Assign(ctx context.Context, slotID, linkID int64, assignedAt, expiresAt time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slot := range r.f.slots {
		if slot.LinkID != nil && *slot.LinkID == linkID {
			return repository.ErrDuplicateKey
		}
	}
	for _, slot := range r.f.slots {
		if slot.ID == slotID {
			slot.LinkID = &linkID
			slot.AssignedAt = &assignedAt
			slot.ExpiresAt = &expiresAt
			return nil
		}
	}
	return repository.ErrNoFreeSlot
}

func (r *fakeSlots) ReleaseByLink(ctx context.Context, linkID int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slot := range r.f.slots {
		if slot.LinkID != nil && *slot.LinkID == linkID {
			slot.LinkID = nil
			slot.AssignedAt = nil
			slot.ExpiresAt = nil
		}
	}
	return nil
}

func (r *fakeSlots) GetByCode(ctx context.Context, code string) (*model.UltraSlot, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slot := range r.f.slots {
		if slot.Code == code {
			copied := *slot
			return &copied, nil
		}
	}
	return nil, repository.ErrSlotNotFound
}

type fakeLeases struct{ f *fakeStore }

func (r *fakeLeases) CountLiveByLength(ctx context.Context, length int, now time.Time) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, lease := range r.f.leases {
		if lease.CodeLength == length && lease.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *fakeLeases) Create(ctx context.Context, lease *model.DigitLease) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.leases {
		if existing.Code == lease.Code && existing.CodeLength == lease.CodeLength {
			return repository.ErrDuplicateKey
		}
		if existing.LinkID == lease.LinkID {
			return repository.ErrDuplicateKey
		}
	}
	r.f.nextLeaseID++
	lease.ID = r.f.nextLeaseID
	stored := *lease
	r.f.leases[lease.ID] = &stored
	return nil
}

func (r *fakeLeases) GetLiveByCode(ctx context.Context, code string, now time.Time) (*model.DigitLease, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, lease := range r.f.leases {
		if lease.Code == code && lease.ExpiresAt.After(now) {
			copied := *lease
			return &copied, nil
		}
	}
	return nil, repository.ErrLeaseNotFound
}

func (r *fakeLeases) GetByLink(ctx context.Context, linkID int64) (*model.DigitLease, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, lease := range r.f.leases {
		if lease.LinkID == linkID {
			copied := *lease
			return &copied, nil
		}
	}
	return nil, repository.ErrLeaseNotFound
}

func (r *fakeLeases) DeleteByLink(ctx context.Context, linkID int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for id, lease := range r.f.leases {
		if lease.LinkID == linkID {
			delete(r.f.leases, id)
		}
	}
	return nil
}

func (r *fakeLeases) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var reclaimed int64
	for id, lease := range r.f.leases {
		if lease.ExpiresAt.Before(now) {
			delete(r.f.leases, id)
			reclaimed++
		}
	}
	return reclaimed, nil
}

type fakeUsernames struct{ f *fakeStore }

func (r *fakeUsernames) ListByUser(ctx context.Context, userID int64) ([]model.Username, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var rows []model.Username
	for _, row := range r.f.usernames {
		if row.UserID == userID {
			rows = append(rows, *row)
		}
	}
	// Soonest expiry first, NULL expiry (the active row) last.
	sort.Slice(rows, func(i, j int) bool {
		switch {
		case rows[i].ExpiresAt == nil:
			return false
		case rows[j].ExpiresAt == nil:
			return true
		default:
			return rows[i].ExpiresAt.Before(*rows[j].ExpiresAt)
		}
	})
	return rows, nil
}

func (r *fakeUsernames) GetActiveByName(ctx context.Context, username string) (*model.Username, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, row := range r.f.usernames {
		if row.Username == username && row.Active {
			copied := *row
			return &copied, nil
		}
	}
	return nil, repository.ErrUsernameNotFound
}

func (r *fakeUsernames) ReservedByOther(ctx context.Context, username string, userID int64, now time.Time) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, row := range r.f.usernames {
		if row.Username == username && row.UserID != userID && row.Reserved(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUsernames) Insert(ctx context.Context, userID int64, username string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, row := range r.f.usernames {
		if row.Username == username {
			return repository.ErrDuplicateKey
		}
	}
	r.f.nextUsernameID++
	r.f.usernames = append(r.f.usernames, &model.Username{
		ID:       r.f.nextUsernameID,
		UserID:   userID,
		Username: username,
		Active:   true,
	})
	return nil
}

func (r *fakeUsernames) Activate(ctx context.Context, userID int64, username string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, row := range r.f.usernames {
		if row.UserID == userID && row.Username == username {
			row.Active = true
			row.ExpiresAt = nil
			return nil
		}
	}
	return repository.ErrUsernameNotFound
}

func (r *fakeUsernames) Deactivate(ctx context.Context, userID int64, username string, expiresAt time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, row := range r.f.usernames {
		if row.UserID == userID && row.Username == username {
			row.Active = false
			expiry := expiresAt
			row.ExpiresAt = &expiry
		}
	}
	return nil
}

func (r *fakeUsernames) Delete(ctx context.Context, userID int64, username string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	kept := r.f.usernames[:0]
	for _, row := range r.f.usernames {
		if row.UserID == userID && row.Username == username {
			continue
		}
		kept = append(kept, row)
	}
	r.f.usernames = kept
	return nil
}

func (r *fakeUsernames) DeleteExpiredByName(ctx context.Context, username string, now time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	kept := r.f.usernames[:0]
	for _, row := range r.f.usernames {
		if row.Username == username && !row.Active && row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
			continue
		}
		kept = append(kept, row)
	}
	r.f.usernames = kept
	return nil
}

type fakeSessions struct{ f *fakeStore }

func (r *fakeSessions) Create(ctx context.Context, session *model.Session) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.sessions {
		if existing.SessionToken == session.SessionToken {
			return repository.ErrDuplicateKey
		}
	}
	r.f.nextSessionID++
	session.ID = r.f.nextSessionID
	stored := *session
	r.f.sessions[session.ID] = &stored
	return nil
}

func (r *fakeSessions) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, session := range r.f.sessions {
		if session.SessionToken == token {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessions) Touch(ctx context.Context, id int64, lastActive time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if session, ok := r.f.sessions[id]; ok {
		session.LastActive = lastActive
	}
	return nil
}

func (r *fakeSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var reclaimed int64
	for id, session := range r.f.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.f.sessions, id)
			reclaimed++
		}
	}
	return reclaimed, nil
}
