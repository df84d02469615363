package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rrens/docqa/internal/binding"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/metrics"
	"github.com/Rrens/docqa/internal/reconcile"
	"github.com/Rrens/docqa/internal/transcript"
	"github.com/Rrens/docqa/internal/turn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// QAFactory returns a QA service acting on behalf of user
type QAFactory func(user domain.User) domain.QAService

// Options configures a Controller
type Options struct {
	MergeDelay   time.Duration
	CallTimeout  time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Controller owns one user's session: its transcript, document binding,
// reconciler and turns. At most one session is active at a time.
type Controller struct {
	auth  domain.Authenticator
	qaFor QAFactory
	opts  Options
	log   zerolog.Logger

	mu   sync.RWMutex
	sess *state
}

type state struct {
	user       domain.User
	qa         domain.QAService
	store      *transcript.Store
	binding    *binding.Binding
	reconciler *reconcile.Reconciler
	turns      *turn.Orchestrator
}

// NewController creates a controller with no active session
func NewController(auth domain.Authenticator, qaFor QAFactory, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		auth:  auth,
		qaFor: qaFor,
		opts:  opts,
		log:   log.With().Str("component", "session").Logger(),
	}
}

// Login authenticates and starts a fresh session
func (c *Controller) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	res, err := c.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, res)
}

// Register creates an account and starts a fresh session for it
func (c *Controller) Register(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	res, err := c.auth.Register(ctx, creds)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, res)
}

// Resume starts a session for a user whose token is already known
func (c *Controller) Resume(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.Token == "" {
		return nil, domain.NewError(domain.KindAuth, "missing token", nil)
	}
	return c.start(ctx, &domain.AuthResult{Token: user.Token, User: user})
}

func (c *Controller) start(ctx context.Context, res *domain.AuthResult) (*domain.User, error) {
	user := res.User
	user.Token = res.Token

	qa := c.qaFor(user)
	store := transcript.NewStore(domain.WelcomeEntry(c.opts.Now()))
	b := binding.New()
	logger := c.log.With().Str("username", user.Username).Logger()
	rec := reconcile.New(store, qa, reconcile.Options{FetchTimeout: c.opts.FetchTimeout, Logger: &logger})
	s := &state{
		user:       user,
		qa:         qa,
		store:      store,
		binding:    b,
		reconciler: rec,
		turns: turn.NewOrchestrator(store, b, qa, rec, turn.Options{
			MergeDelay:  c.opts.MergeDelay,
			CallTimeout: c.opts.CallTimeout,
			Now:         c.opts.Now,
			Logger:      &logger,
		}),
	}

	c.mu.Lock()
	old := c.sess
	c.sess = s
	c.mu.Unlock()
	if old != nil {
		c.discard(old)
	}
	metrics.SessionOpened()

	// both are best effort; the session is usable without them
	if _, err := rec.Merge(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial history merge failed")
	}
	if err := c.refresh(ctx, s); err != nil {
		logger.Warn().Err(err).Msg("initial document refresh failed")
	}

	logger.Info().Msg("session started")
	out := user
	return &out, nil
}

// Logout discards the session. The session is gone even when the
// authenticator reports an error.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	if s == nil {
		return domain.ErrNoSession
	}
	c.discard(s)

	if err := c.auth.Logout(ctx, s.user.Token); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	c.log.Info().Str("username", s.user.Username).Msg("session ended")
	return nil
}

func (c *Controller) discard(s *state) {
	s.reconciler.Close()
	metrics.SessionClosed()
}

// CurrentUser returns the session owner
func (c *Controller) CurrentUser() (*domain.User, bool) {
	s, err := c.current()
	if err != nil {
		return nil, false
	}
	u := s.user
	return &u, true
}

// Active reports whether a session is open
func (c *Controller) Active() bool {
	_, err := c.current()
	return err == nil
}

func (c *Controller) current() (*state, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return nil, domain.ErrNoSession
	}
	return c.sess, nil
}

// SubmitQuestion starts a question turn
func (c *Controller) SubmitQuestion(ctx context.Context, text string) (*turn.Turn, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.turns.SubmitQuestion(ctx, text), nil
}

// SubmitUpload starts an upload turn
func (c *Controller) SubmitUpload(ctx context.Context, upload domain.Upload) (*turn.Turn, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.turns.SubmitUpload(ctx, upload), nil
}

// DeleteDocument starts a delete turn gated by confirm
func (c *Controller) DeleteDocument(ctx context.Context, documentID string, confirm turn.Confirmer) (*turn.Turn, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.turns.DeleteDocument(ctx, documentID, confirm), nil
}

// SelectDocument binds a catalog member
func (c *Controller) SelectDocument(documentID string) (domain.DocumentRef, error) {
	s, err := c.current()
	if err != nil {
		return domain.DocumentRef{}, err
	}
	return s.turns.SelectDocument(documentID)
}

// RefreshDocuments reloads the catalog from the QA service
func (c *Controller) RefreshDocuments(ctx context.Context) (domain.BindingSnapshot, error) {
	s, err := c.current()
	if err != nil {
		return domain.BindingSnapshot{}, err
	}
	if err := c.refresh(ctx, s); err != nil {
		return s.binding.Snapshot(), err
	}
	return s.binding.Snapshot(), nil
}

func (c *Controller) refresh(ctx context.Context, s *state) error {
	docs, err := s.qa.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	s.binding.ReplaceCatalog(docs)
	return nil
}

// Reconcile merges the authoritative history now
func (c *Controller) Reconcile(ctx context.Context) (reconcile.Result, error) {
	s, err := c.current()
	if err != nil {
		return "", err
	}
	return s.reconciler.Merge(ctx)
}

// Transcript returns the ordered conversation
func (c *Controller) Transcript() ([]domain.ConversationEntry, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.store.Snapshot(), nil
}

// Documents returns the binding and catalog
func (c *Controller) Documents() (domain.BindingSnapshot, error) {
	s, err := c.current()
	if err != nil {
		return domain.BindingSnapshot{}, err
	}
	return s.binding.Snapshot(), nil
}
