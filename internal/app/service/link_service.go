package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
)

var (
	// ErrInvalidURL rejects targets that do not parse as absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid target URL")

	// ErrCustomCodeTaken: the requested custom or affix code is occupied.
	ErrCustomCodeTaken = errors.New("that code is already taken")

	// ErrCustomCodeInvalid rejects custom codes with a shape the classifier
	// would misread as another space.
	ErrCustomCodeInvalid = errors.New("invalid custom code")

	customCodePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
)

// Owner identifies who a link belongs to: an account or an anonymous session,
// never both.
type Owner struct {
	UserID    *int64
	SessionID *int64
}

// ShortenInput captures a create request.
type ShortenInput struct {
	URL        string
	Space      codes.Space // empty defaults to classic
	CustomCode string      // required for custom and affix
	Owner      Owner
}

// ShortenResult is the outcome of a claim: the persisted link, the resolvable
// code and, for leased spaces, when the lease ends.
type ShortenResult struct {
	Link      *model.Link
	Code      string
	ExpiresAt *time.Time
}

// LinkService is the surface the HTTP layer talks to: create, customize,
// resolve and delete short links across all code spaces.
type LinkService interface {
	Shorten(ctx context.Context, input ShortenInput) (*ShortenResult, error)
	ChangeSpace(ctx context.Context, linkID int64, space codes.Space, customCode string) (*ShortenResult, error)
	ReleaseCodeSpace(ctx context.Context, linkID int64, space codes.Space) error
	Resolve(ctx context.Context, raw string, pathCtx codes.PathContext) (*model.Link, error)
	Get(ctx context.Context, linkID int64) (*model.Link, error)
	List(ctx context.Context, owner Owner, limit, offset int) ([]model.Link, error)
	Delete(ctx context.Context, linkID int64) error
}

type linkService struct {
	store     repository.Store
	classic   *ClassicGenerator
	ultra     *UltraPool
	digit     *DigitGenerator
	usernames *UsernameService
	filter    *CodeFilter
	cache     *ResolveCache
}

// NewLinkService wires the per-space allocators behind one service. The code
// filter and the cache may be nil; resolution then always hits the store.
func NewLinkService(store repository.Store, classic *ClassicGenerator, ultra *UltraPool, digit *DigitGenerator, usernames *UsernameService, filter *CodeFilter, cache *ResolveCache) LinkService {
	return &linkService{
		store:     store,
		classic:   classic,
		ultra:     ultra,
		digit:     digit,
		usernames: usernames,
		filter:    filter,
		cache:     cache,
	}
}

// Shorten persists a new link and claims a code in the requested space. The
// record is inserted first with only its QR payload id (retried on the rare
// collision), then the space-specific claim runs against the stored row.
func (s *linkService) Shorten(ctx context.Context, input ShortenInput) (*ShortenResult, error) {
	if err := validateTargetURL(input.URL); err != nil {
		return nil, err
	}

	space := input.Space
	if space == "" {
		space = codes.SpaceClassic
	}

	link, err := s.insertWithQRID(ctx, input)
	if err != nil {
		return nil, err
	}

	result, err := s.claim(ctx, link, space, input.CustomCode)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *linkService) insertWithQRID(ctx context.Context, input ShortenInput) (*model.Link, error) {
	for attempt := 0; attempt < codes.MaxAttempts; attempt++ {
		qrID, err := codes.NewQRID()
		if err != nil {
			return nil, fmt.Errorf("draw qr id: %w", err)
		}

		link := &model.Link{
			URL:       input.URL,
			QRCodeID:  qrID,
			UserID:    input.Owner.UserID,
			SessionID: input.Owner.SessionID,
			CodeSpace: string(codes.SpaceClassic),
		}
		err = s.store.Links().Create(ctx, link)
		if repository.IsDuplicateKey(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert link: %w", err)
		}
		return link, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// claim dispatches to the allocator of the requested space.
func (s *linkService) claim(ctx context.Context, link *model.Link, space codes.Space, customCode string) (*ShortenResult, error) {
	switch space {
	case codes.SpaceClassic:
		code, err := s.classic.Generate(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		s.addToFilter(code)
		link.Code = &code
		link.CodeSpace = string(codes.SpaceClassic)
		return &ShortenResult{Link: link, Code: code}, nil

	case codes.SpaceUltra:
		lease, err := s.ultra.Claim(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		link.Code = nil
		link.CodeSpace = string(codes.SpaceUltra)
		return &ShortenResult{Link: link, Code: lease.Code, ExpiresAt: &lease.ExpiresAt}, nil

	case codes.SpaceDigit:
		lease, err := s.digit.Generate(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		link.Code = nil
		link.CodeSpace = string(codes.SpaceDigit)
		return &ShortenResult{Link: link, Code: lease.Code, ExpiresAt: &lease.ExpiresAt}, nil

	case codes.SpaceCustom, codes.SpaceAffix:
		code := strings.ToLower(strings.TrimSpace(customCode))
		if !customCodePattern.MatchString(code) {
			return nil, ErrCustomCodeInvalid
		}
		// Affix codes resolve under the username prefix; bare custom codes
		// resolve by shape and must survive classification, or the stored
		// code could never be reached.
		if space == codes.SpaceCustom && !resolvesAsCustom(code) {
			return nil, ErrCustomCodeInvalid
		}
		err := s.store.Links().SetCode(ctx, link.ID, &code, string(space))
		if repository.IsDuplicateKey(err) {
			return nil, ErrCustomCodeTaken
		}
		if err != nil {
			return nil, fmt.Errorf("store custom code: %w", err)
		}
		s.addToFilter(code)
		link.Code = &code
		link.CodeSpace = string(space)
		return &ShortenResult{Link: link, Code: code}, nil

	default:
		return nil, ErrUnknownCodeSpace
	}
}

// ChangeSpace retires the link's current code from its pool, then claims a
// fresh one in the requested space. The QR payload id is untouched.
func (s *linkService) ChangeSpace(ctx context.Context, linkID int64, space codes.Space, customCode string) (*ShortenResult, error) {
	link, err := s.store.Links().GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if err := s.ReleaseCodeSpace(ctx, linkID, codes.Space(link.CodeSpace)); err != nil {
		return nil, err
	}
	if link.Code != nil {
		s.cache.Forget(ctx, *link.Code)
	}

	return s.claim(ctx, link, space, customCode)
}

// ReleaseCodeSpace returns the link's current code to its pool: ultra slots
// are nulled, digit leases deleted, literal codes cleared. Idempotent.
func (s *linkService) ReleaseCodeSpace(ctx context.Context, linkID int64, space codes.Space) error {
	switch space {
	case codes.SpaceUltra:
		return s.ultra.Release(ctx, linkID)
	case codes.SpaceDigit:
		return s.digit.Release(ctx, linkID)
	default:
		err := s.store.Links().SetCode(ctx, linkID, nil, string(space))
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil
		}
		return err
	}
}

// Resolve classifies an inbound code and performs the space-specific lookup.
// Every miss folds into ErrLinkNotFound: the redirect layer shows one
// not-found page, never an error.
func (s *linkService) Resolve(ctx context.Context, raw string, pathCtx codes.PathContext) (*model.Link, error) {
	classification, err := codes.Classify(raw, pathCtx)
	if err != nil {
		return nil, repository.ErrLinkNotFound
	}

	switch classification.Space {
	case codes.SpaceUltra:
		linkID, err := s.ultra.Resolve(ctx, classification.Code)
		if err != nil {
			return nil, foldNotFound(err, repository.ErrSlotNotFound)
		}
		return s.store.Links().GetByID(ctx, linkID)

	case codes.SpaceDigit:
		linkID, err := s.digit.Resolve(ctx, classification.Code)
		if err != nil {
			return nil, foldNotFound(err, repository.ErrLeaseNotFound)
		}
		return s.store.Links().GetByID(ctx, linkID)

	case codes.SpaceQR:
		return s.store.Links().GetByQRCodeID(ctx, classification.Code)

	case codes.SpaceAffix:
		userID, err := s.usernames.ResolveActive(ctx, pathCtx.Username)
		if err != nil {
			return nil, foldNotFound(err, repository.ErrUsernameNotFound)
		}
		link, err := s.lookupStored(ctx, strings.ToLower(classification.Code))
		if err != nil {
			return nil, err
		}
		if link.UserID == nil || *link.UserID != userID {
			return nil, repository.ErrLinkNotFound
		}
		return link, nil

	default: // classic, custom
		return s.lookupStored(ctx, classification.Code)
	}
}

// lookupStored resolves literal codes on the links table, short-circuiting
// through the bloom filter when it can prove absence and through the redis
// cache on repeat hits.
func (s *linkService) lookupStored(ctx context.Context, code string) (*model.Link, error) {
	if s.filter != nil && !s.filter.MayContain(code) {
		return nil, repository.ErrLinkNotFound
	}
	if link, ok := s.cache.Get(ctx, code); ok {
		return link, nil
	}
	link, err := s.store.Links().GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, link)
	return link, nil
}

func (s *linkService) Get(ctx context.Context, linkID int64) (*model.Link, error) {
	return s.store.Links().GetByID(ctx, linkID)
}

func (s *linkService) List(ctx context.Context, owner Owner, limit, offset int) ([]model.Link, error) {
	switch {
	case owner.UserID != nil:
		return s.store.Links().ListByUser(ctx, *owner.UserID, limit, offset)
	case owner.SessionID != nil:
		return s.store.Links().ListBySession(ctx, *owner.SessionID, limit, offset)
	default:
		return nil, nil
	}
}

// Delete releases whatever pool slot the link holds, then removes the row.
func (s *linkService) Delete(ctx context.Context, linkID int64) error {
	link, err := s.store.Links().GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil
		}
		return err
	}

	if err := s.ReleaseCodeSpace(ctx, linkID, codes.Space(link.CodeSpace)); err != nil {
		return err
	}
	if link.Code != nil {
		s.cache.Forget(ctx, *link.Code)
	}
	return s.store.Links().Delete(ctx, linkID)
}

// resolvesAsCustom reports whether a stored custom code would classify back
// to the custom space unchanged. Codes in the ultra, classic or digit length
// bands route to those spaces on the redirect path instead.
func resolvesAsCustom(code string) bool {
	classification, err := codes.Classify(code, codes.PathContext{})
	return err == nil && classification.Space == codes.SpaceCustom && classification.Code == code
}

func (s *linkService) addToFilter(code string) {
	if s.filter != nil {
		s.filter.Add(code)
	}
}

// foldNotFound maps a space-specific miss to the single not-found signal and
// passes infrastructure failures through unchanged.
func foldNotFound(err, miss error) error {
	if errors.Is(err, miss) {
		return repository.ErrLinkNotFound
	}
	return err
}

func validateTargetURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
