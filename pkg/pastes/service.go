package pastes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// ErrNotVisible is what callers see for pastes that do not exist and for
// private pastes they may not read. The two are indistinguishable.
var ErrNotVisible = fmt.Errorf("%w: paste not found or private", auth.ErrNotFound)

// Config holds paste limits
type Config struct {
	IDLength           int
	IDAttempts         int
	MaxTitleLength     int
	MaxContentBytes    int
	SearchDefaultLimit int
	SearchMaxLimit     int
	// SearchScanLimit bounds how many candidate pastes one search reads
	SearchScanLimit int
	LatestCount     int
	LatestTTL       time.Duration
	LatestCacheSize int
}

// DefaultConfig returns the default paste limits
func DefaultConfig() Config {
	return Config{
		IDLength:           8,
		IDAttempts:         5,
		MaxTitleLength:     256,
		MaxContentBytes:    1 << 20,
		SearchDefaultLimit: 50,
		SearchMaxLimit:     250,
		SearchScanLimit:    5000,
		LatestCount:        8,
		LatestTTL:          30 * time.Second,
		LatestCacheSize:    8,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IDLength <= 0 {
		c.IDLength = def.IDLength
	}
	if c.IDAttempts <= 0 {
		c.IDAttempts = def.IDAttempts
	}
	if c.MaxTitleLength <= 0 {
		c.MaxTitleLength = def.MaxTitleLength
	}
	if c.MaxContentBytes <= 0 {
		c.MaxContentBytes = def.MaxContentBytes
	}
	if c.SearchDefaultLimit <= 0 {
		c.SearchDefaultLimit = def.SearchDefaultLimit
	}
	if c.SearchMaxLimit < c.SearchDefaultLimit {
		c.SearchMaxLimit = def.SearchMaxLimit
	}
	if c.SearchScanLimit <= 0 {
		c.SearchScanLimit = def.SearchScanLimit
	}
	if c.LatestCount <= 0 {
		c.LatestCount = def.LatestCount
	}
	if c.LatestTTL <= 0 {
		c.LatestTTL = def.LatestTTL
	}
	if c.LatestCacheSize <= 0 {
		c.LatestCacheSize = def.LatestCacheSize
	}
	return c
}

// View is a paste as handed to a reader
type View struct {
	storage.Paste
	// CreatorName is empty for anonymized pastes
	CreatorName string `json:"creator_name"`
}

// Summary is one search hit
type Summary struct {
	ID         string            `json:"id"`
	Creator    *int64            `json:"creator"`
	Visibility access.Visibility `json:"visibility"`
	Title      string            `json:"title"`
}

// CreateRequest is a new paste
type CreateRequest struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Visibility access.Visibility `json:"visibility"`
	Syntax     string            `json:"syntax"`
	Tags       string            `json:"tags"`
	Folder     string            `json:"folder"`
}

// EditRequest changes the non-nil fields of paste ID
type EditRequest struct {
	ID         string             `json:"id"`
	Title      *string            `json:"title"`
	Content    *string            `json:"content"`
	Visibility *access.Visibility `json:"visibility"`
	Syntax     *string            `json:"syntax"`
	Tags       *string            `json:"tags"`
	Folder     *string            `json:"folder"`
}

// SearchQuery needs Title or Creator. Title is a regular expression matched
// against lowercased titles.
type SearchQuery struct {
	Title   string
	Creator string
	Limit   int
	Offset  int
}

// Service applies the access policy to every paste operation
type Service struct {
	store   storage.PasteStore
	users   storage.UserReader
	checker *access.Checker
	ids     *auth.TokenGenerator
	latest  *LatestCache
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewService creates a paste service. Nil logger, checker and clock get defaults.
func NewService(store storage.PasteStore, users storage.UserReader, cfg Config, checker *access.Checker, logger *observability.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if checker == nil {
		checker = access.NewChecker(logger, metrics)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg = cfg.withDefaults()

	s := &Service{
		store:   store,
		users:   users,
		checker: checker,
		ids:     auth.NewTokenGenerator(0),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
	s.latest = NewLatestCache(s.loadLatest, cfg.LatestTTL, cfg.LatestCacheSize, clock, metrics)
	return s
}

func (s *Service) validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", auth.ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > s.cfg.MaxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", auth.ErrInvalidInput, s.cfg.MaxTitleLength)
	}
	return nil
}

func (s *Service) validateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content is required", auth.ErrInvalidInput)
	}
	if len(content) > s.cfg.MaxContentBytes {
		return fmt.Errorf("%w: content larger than %d bytes", auth.ErrInvalidInput, s.cfg.MaxContentBytes)
	}
	return nil
}

func validateVisibility(v access.Visibility) error {
	if !v.Valid() {
		return fmt.Errorf("%w: invalid visibility %d", auth.ErrInvalidInput, int(v))
	}
	return nil
}

// Create stores a new paste owned by the caller. The caller needs the
// create permission; unknown syntaxes fall back to plaintext.
func (s *Service) Create(ctx context.Context, id *auth.Identity, req CreateRequest) (storage.Paste, error) {
	if id == nil || !id.Valid() {
		return storage.Paste{}, auth.ErrUnknownCredential
	}
	if !id.Permissions().CreatePaste {
		return storage.Paste{}, fmt.Errorf("%w: token cannot create pastes", auth.ErrForbidden)
	}
	if err := s.validateTitle(req.Title); err != nil {
		return storage.Paste{}, err
	}
	if err := s.validateContent(req.Content); err != nil {
		return storage.Paste{}, err
	}
	if err := validateVisibility(req.Visibility); err != nil {
		return storage.Paste{}, err
	}

	owner := id.Owner().ID
	now := s.clock.Now().UTC().Truncate(time.Second)
	p := storage.Paste{
		Creator:    &owner,
		Visibility: req.Visibility,
		Title:      req.Title,
		Content:    req.Content,
		Syntax:     NormalizeSyntax(req.Syntax),
		Tags:       req.Tags,
		Folder:     req.Folder,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	for attempt := 1; ; attempt++ {
		pid, err := s.ids.PasteID(s.cfg.IDLength)
		if err != nil {
			return storage.Paste{}, err
		}
		p.ID = pid

		err = s.store.CreatePaste(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, auth.ErrConflict) || attempt >= s.cfg.IDAttempts {
			return storage.Paste{}, err
		}
		s.logger.WithField("attempt", attempt).Debug("paste id collision, regenerating")
	}

	if p.Visibility == access.Public {
		s.latest.Invalidate()
	}
	s.logger.WithFields(map[string]interface{}{
		"paste_id":   p.ID,
		"user_id":    owner,
		"visibility": p.Visibility.String(),
	}).Info("paste created")
	return p, nil
}

// readable loads a paste and hides it unless the caller may read it
func (s *Service) readable(ctx context.Context, id *auth.Identity, pasteID string) (storage.Paste, error) {
	p, err := s.store.GetPaste(ctx, pasteID)
	if errors.Is(err, auth.ErrNotFound) {
		return storage.Paste{}, ErrNotVisible
	}
	if err != nil {
		return storage.Paste{}, err
	}
	if !s.checker.Check(id, p.Resource(), access.ActionRead).Allowed() {
		return storage.Paste{}, ErrNotVisible
	}
	return p, nil
}

// Get returns a paste with its creator's name resolved
func (s *Service) Get(ctx context.Context, id *auth.Identity, pasteID string) (View, error) {
	p, err := s.readable(ctx, id, pasteID)
	if err != nil {
		return View{}, err
	}

	view := View{Paste: p}
	if p.Creator != nil {
		u, err := s.users.UserByID(ctx, *p.Creator)
		switch {
		case err == nil:
			view.CreatorName = u.Name
		case errors.Is(err, auth.ErrNotFound):
		default:
			return View{}, err
		}
	}
	return view, nil
}

// Raw returns only a paste's content
func (s *Service) Raw(ctx context.Context, id *auth.Identity, pasteID string) (string, error) {
	p, err := s.readable(ctx, id, pasteID)
	if err != nil {
		return "", err
	}
	return p.Content, nil
}

// authorize loads pasteID and checks action against it. A denied caller
// who could not read the paste either gets ErrNotVisible, so private
// pastes stay hidden from non-owners.
func (s *Service) authorize(ctx context.Context, id *auth.Identity, pasteID string, action access.Action) (storage.Paste, error) {
	if id == nil || !id.Valid() {
		return storage.Paste{}, auth.ErrUnknownCredential
	}
	if pasteID == "" {
		return storage.Paste{}, fmt.Errorf("%w: missing paste id", auth.ErrInvalidInput)
	}
	p, err := s.store.GetPaste(ctx, pasteID)
	if errors.Is(err, auth.ErrNotFound) {
		return storage.Paste{}, ErrNotVisible
	}
	if err != nil {
		return storage.Paste{}, err
	}
	res := s.checker.Check(id, p.Resource(), action)
	if res.Allowed() {
		return p, nil
	}
	if !access.Allowed(id, p.Resource(), access.ActionRead) {
		return storage.Paste{}, ErrNotVisible
	}
	return storage.Paste{}, fmt.Errorf("%w: %s", auth.ErrForbidden, res.Reason)
}

// Edit applies the non-nil fields of req to a paste the caller owns
func (s *Service) Edit(ctx context.Context, id *auth.Identity, req EditRequest) (storage.Paste, error) {
	p, err := s.authorize(ctx, id, req.ID, access.ActionEdit)
	if err != nil {
		return storage.Paste{}, err
	}
	wasPublic := p.Visibility == access.Public

	if req.Title != nil {
		if err := s.validateTitle(*req.Title); err != nil {
			return storage.Paste{}, err
		}
		p.Title = *req.Title
	}
	if req.Content != nil {
		if err := s.validateContent(*req.Content); err != nil {
			return storage.Paste{}, err
		}
		p.Content = *req.Content
	}
	if req.Visibility != nil {
		if err := validateVisibility(*req.Visibility); err != nil {
			return storage.Paste{}, err
		}
		p.Visibility = *req.Visibility
	}
	if req.Syntax != nil {
		p.Syntax = NormalizeSyntax(*req.Syntax)
	}
	if req.Tags != nil {
		p.Tags = *req.Tags
	}
	if req.Folder != nil {
		p.Folder = *req.Folder
	}
	p.ModifiedAt = s.clock.Now().UTC().Truncate(time.Second)

	if err := s.store.UpdatePaste(ctx, p); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return storage.Paste{}, ErrNotVisible
		}
		return storage.Paste{}, err
	}

	if wasPublic || p.Visibility == access.Public {
		s.latest.Invalidate()
	}
	s.logger.WithFields(map[string]interface{}{
		"paste_id": p.ID,
		"user_id":  id.Owner().ID,
	}).Info("paste edited")
	return p, nil
}

// Delete removes a paste the caller owns
func (s *Service) Delete(ctx context.Context, id *auth.Identity, pasteID string) error {
	p, err := s.authorize(ctx, id, pasteID, access.ActionDelete)
	if err != nil {
		return err
	}

	ok, err := s.store.DeletePaste(ctx, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotVisible
	}

	if p.Visibility == access.Public {
		s.latest.Invalidate()
	}
	s.logger.WithFields(map[string]interface{}{
		"paste_id": p.ID,
		"user_id":  id.Owner().ID,
	}).Info("paste deleted")
	return nil
}

// Search finds pastes by title pattern and/or creator name. Anonymous
// callers and tokens without view_private only see public pastes; owners
// holding view_private also see their own unlisted and private ones.
// A query with neither filter matches nothing.
func (s *Service) Search(ctx context.Context, id *auth.Identity, q SearchQuery) ([]Summary, error) {
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", auth.ErrInvalidInput)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.SearchDefaultLimit
	}
	if limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}
	if q.Title == "" && q.Creator == "" {
		return []Summary{}, nil
	}

	var pattern *regexp.Regexp
	if q.Title != "" {
		re, err := regexp.Compile(strings.ToLower(q.Title))
		if err != nil {
			return nil, fmt.Errorf("%w: title pattern: %v", auth.ErrInvalidInput, err)
		}
		pattern = re
	}

	query := storage.PasteQuery{
		Visibilities: []access.Visibility{access.Public},
		Limit:        s.cfg.SearchScanLimit,
	}
	if q.Creator != "" {
		u, err := s.users.UserByName(ctx, q.Creator)
		if errors.Is(err, auth.ErrNotFound) {
			return []Summary{}, nil
		}
		if err != nil {
			return nil, err
		}
		query.CreatorID = &u.ID
	}
	if id != nil && id.Valid() && id.Permissions().ViewPrivate {
		owner := id.Owner().ID
		query.OrOwnedBy = &owner
	}

	candidates, err := s.store.ListPastes(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := make([]Summary, 0, limit)
	skipped := 0
	for _, p := range candidates {
		if !s.listable(id, p) {
			continue
		}
		if pattern != nil && !pattern.MatchString(strings.ToLower(p.Title)) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		hits = append(hits, Summary{ID: p.ID, Creator: p.Creator, Visibility: p.Visibility, Title: p.Title})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// listable decides whether p may appear in the caller's search results
func (s *Service) listable(id *auth.Identity, p storage.Paste) bool {
	switch p.Visibility {
	case access.Public:
		return true
	case access.Private:
		return s.checker.Check(id, p.Resource(), access.ActionViewPrivateListing).Allowed()
	default:
		return id != nil && access.IsOwner(id, p.Resource()) && id.Permissions().ViewPrivate
	}
}

func (s *Service) loadLatest(ctx context.Context, n int) ([]storage.Paste, error) {
	return s.store.ListPastes(ctx, storage.PasteQuery{
		Visibilities: []access.Visibility{access.Public},
		Limit:        n,
	})
}

// Latest returns the newest public pastes, cached for LatestTTL
func (s *Service) Latest(ctx context.Context) ([]storage.Paste, error) {
	return s.latest.Get(ctx, s.cfg.LatestCount)
}

// ListOwn returns the caller's newest pastes of every visibility. Only
// session tokens may list; API tokens use Search.
func (s *Service) ListOwn(ctx context.Context, id *auth.Identity, limit int) ([]storage.Paste, error) {
	if id == nil || !id.IsSessionToken() {
		return nil, auth.ErrInsufficientGate
	}
	if limit <= 0 || limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.LatestCount
	}
	owner := id.Owner().ID
	return s.store.ListPastes(ctx, storage.PasteQuery{CreatorID: &owner, OrOwnedBy: &owner, Limit: limit})
}
