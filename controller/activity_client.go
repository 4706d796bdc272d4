package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nomis52/signup/catalog"
	"github.com/nomis52/signup/clients/signupclient"
	"github.com/nomis52/signup/view"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultRequestTimeout bounds every request made to the API.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultMessageTTL is how long a form message stays visible.
	DefaultMessageTTL = 5 * time.Second
)

// User facing texts.
const (
	LoadFailureMessage       = "Failed to load activities. Please try again later."
	FallbackErrorMessage     = "An error occurred"
	SignupFailureMessage     = "Failed to sign up. Please try again."
	DeregisterFailureMessage = "Failed to deregister. Please try again."
)

// Log channels.
const (
	ChannelCatalog    = "catalog"
	ChannelSignup     = "signup"
	ChannelDeregister = "deregister"
)

var (
	// ErrSubmissionInProgress is returned when a form is submitted while its previous submission is in flight.
	ErrSubmissionInProgress = errors.New("submission already in progress")
	// ErrClosed is returned by operations on a closed ActivityClient.
	ErrClosed = errors.New("activity client closed")
	// ErrSuperseded is returned by a load whose result was discarded because a newer load started.
	ErrSuperseded = errors.New("load superseded by a newer load")
)

// API is the activities service.
type API interface {
	Activities(ctx context.Context) (*catalog.Catalog, error)
	Signup(ctx context.Context, activity, email string) (string, error)
	Deregister(ctx context.Context, activity, email string) (string, error)
}

var _ API = (*signupclient.Client)(nil)

// Option configures an ActivityClient.
type Option func(*ActivityClient)

// WithClock sets the clock used for hiding messages.
func WithClock(clock Clock) Option {
	return func(c *ActivityClient) {
		c.clock = clock
	}
}

// WithRequestTimeout bounds each API request. Non-positive values are ignored.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *ActivityClient) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithMessageTTL sets how long form messages stay visible. Non-positive values are ignored.
func WithMessageTTL(d time.Duration) Option {
	return func(c *ActivityClient) {
		if d > 0 {
			c.messageTTL = d
		}
	}
}

// WithLogger logs every channel to logger, tagged with a "channel" attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ActivityClient) {
		c.loggerFactory = func(channel string) *slog.Logger {
			return logger.With("channel", channel)
		}
	}
}

// WithLoggerFactory sets a factory creating one logger per channel
// (ChannelCatalog, ChannelSignup, ChannelDeregister).
func WithLoggerFactory(factory func(channel string) *slog.Logger) Option {
	return func(c *ActivityClient) {
		c.loggerFactory = factory
	}
}

// WithMetrics records loads and submissions into m.
func WithMetrics(m *Metrics) Option {
	return func(c *ActivityClient) {
		c.metrics = m
	}
}

// ActivityClient loads the activity catalog into the view surfaces and
// submits signup and deregister requests.
// It is safe for concurrent use.
type ActivityClient struct {
	api            API
	surfaces       view.Surfaces
	clock          Clock
	requestTimeout time.Duration
	messageTTL     time.Duration
	loggerFactory  func(channel string) *slog.Logger
	metrics        *Metrics
	logger         *slog.Logger

	lifetime       context.Context
	cancelLifetime context.CancelFunc
	closeOnce      sync.Once

	// surfaceMu serializes every write to the surfaces.
	surfaceMu sync.Mutex

	loadMu     sync.Mutex
	loadGen    uint64
	cancelLoad context.CancelFunc

	signup     *form
	deregister *form
}

// form is the per-form state: its surfaces, its pending hide and its submission guard.
type form struct {
	name           string
	surfaces       view.FormSurfaces
	hide           *autoHide
	failureMessage string
	send           func(ctx context.Context, activity, email string) (string, error)
	logger         *slog.Logger

	mu         sync.Mutex
	submitting bool
}

func (f *form) tryStart() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return false
	}
	f.submitting = true
	return true
}

func (f *form) finish() {
	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
}

// New creates an ActivityClient rendering into surfaces. Every surface is required.
func New(api API, surfaces view.Surfaces, opts ...Option) (*ActivityClient, error) {
	if api == nil {
		return nil, errors.New("api is required")
	}
	if err := validateSurfaces(surfaces); err != nil {
		return nil, err
	}

	c := &ActivityClient{
		api:            api,
		surfaces:       surfaces,
		clock:          realClock{},
		requestTimeout: DefaultRequestTimeout,
		messageTTL:     DefaultMessageTTL,
		loggerFactory: func(channel string) *slog.Logger {
			return slog.Default().With("channel", channel)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = nopMetrics()
	}

	c.lifetime, c.cancelLifetime = context.WithCancel(context.Background())
	c.logger = c.loggerFactory(ChannelCatalog)
	c.signup = &form{
		name:           ChannelSignup,
		surfaces:       surfaces.Signup,
		hide:           newAutoHide(&c.surfaceMu, c.clock, c.messageTTL, surfaces.Signup.Message),
		failureMessage: SignupFailureMessage,
		send:           api.Signup,
		logger:         c.loggerFactory(ChannelSignup),
	}
	c.deregister = &form{
		name:           ChannelDeregister,
		surfaces:       surfaces.Deregister,
		hide:           newAutoHide(&c.surfaceMu, c.clock, c.messageTTL, surfaces.Deregister.Message),
		failureMessage: DeregisterFailureMessage,
		send:           api.Deregister,
		logger:         c.loggerFactory(ChannelDeregister),
	}
	return c, nil
}

func validateSurfaces(s view.Surfaces) error {
	var errs []error
	if s.List == nil {
		errs = append(errs, errors.New("list view is required"))
	}
	forms := []struct {
		name string
		view.FormSurfaces
	}{
		{ChannelSignup, s.Signup},
		{ChannelDeregister, s.Deregister},
	}
	for _, f := range forms {
		if f.Selector == nil {
			errs = append(errs, fmt.Errorf("%s selector is required", f.name))
		}
		if f.Form == nil {
			errs = append(errs, fmt.Errorf("%s form is required", f.name))
		}
		if f.Message == nil {
			errs = append(errs, fmt.Errorf("%s message area is required", f.name))
		}
	}
	return errors.Join(errs...)
}

// LoadActivities fetches the catalog and renders it: one card per activity in
// the list and one option per activity in both selectors.
// On failure the list shows LoadFailureMessage and the selectors keep their options.
// Starting a load cancels any load still in flight; the older load returns ErrSuperseded.
func (c *ActivityClient) LoadActivities(ctx context.Context) error {
	if c.lifetime.Err() != nil {
		return ErrClosed
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	gen := c.beginLoad(cancel)
	defer c.endLoad(gen)

	start := c.clock.Now()
	cat, err := c.api.Activities(reqCtx)

	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()

	switch {
	case c.lifetime.Err() != nil:
		return ErrClosed
	case !c.isCurrentLoad(gen):
		c.metrics.load(outcomeSuperseded)
		c.logger.Debug("discarding superseded catalog load")
		return ErrSuperseded
	case err != nil && ctx.Err() != nil:
		// The caller gave up; nothing is waiting for the result.
		return fmt.Errorf("loading activities: %w", err)
	case err != nil:
		c.metrics.load(outcomeFailure)
		c.logger.Error("failed to load activities", "error", err)
		c.surfaces.List.ShowFailure(LoadFailureMessage)
		return fmt.Errorf("loading activities: %w", err)
	}

	activities := cat.Activities()
	cards := make([]view.Card, 0, len(activities))
	c.metrics.spotsLeft.Reset()
	for _, a := range activities {
		cards = append(cards, toCard(a))
		c.metrics.spotsLeft.With(prometheus.Labels{"activity": a.Name}).Set(float64(a.SpotsLeft()))
	}
	names := cat.Names()

	c.surfaces.List.Render(cards)
	c.surfaces.Signup.Selector.SetOptions(names)
	c.surfaces.Deregister.Selector.SetOptions(names)

	c.metrics.load(outcomeSuccess)
	c.metrics.activities.Set(float64(len(cards)))
	c.logger.Debug("rendered activities", "count", len(cards), "duration", c.clock.Now().Sub(start))
	return nil
}

// SubmitSignup signs email up for activity and shows the outcome in the signup message area.
// On success the form is reset and the catalog reloaded.
func (c *ActivityClient) SubmitSignup(ctx context.Context, activity, email string) error {
	return c.submit(ctx, c.signup, activity, email)
}

// SubmitDeregister removes email from activity and shows the outcome in the deregister message area.
// On success the form is reset and the catalog reloaded.
func (c *ActivityClient) SubmitDeregister(ctx context.Context, activity, email string) error {
	return c.submit(ctx, c.deregister, activity, email)
}

func (c *ActivityClient) submit(ctx context.Context, f *form, activity, email string) error {
	if c.lifetime.Err() != nil {
		return ErrClosed
	}
	if !f.tryStart() {
		c.metrics.submission(f.name, outcomeRejected)
		return ErrSubmissionInProgress
	}

	c.surfaceMu.Lock()
	f.surfaces.Form.Fill(activity, email)
	f.surfaces.Form.SetEnabled(false)
	c.surfaceMu.Unlock()

	reqCtx, cancel := c.requestContext(ctx)
	message, err := f.send(reqCtx, activity, email)
	cancel()

	c.surfaceMu.Lock()
	if c.lifetime.Err() != nil {
		c.surfaceMu.Unlock()
		f.finish()
		return ErrClosed
	}

	var apiErr *signupclient.APIError
	switch {
	case err == nil:
		c.metrics.submission(f.name, outcomeSuccess)
		f.logger.Info("submission succeeded", "activity", activity)
		c.showMessage(f, message, view.KindSuccess)
		f.surfaces.Form.Reset()
	case errors.As(err, &apiErr):
		c.metrics.submission(f.name, outcomeAPIError)
		f.logger.Warn("submission rejected", "activity", activity, "status", apiErr.StatusCode, "detail", apiErr.Detail)
		text := apiErr.Detail
		if text == "" {
			text = FallbackErrorMessage
		}
		c.showMessage(f, text, view.KindError)
	default:
		c.metrics.submission(f.name, outcomeFailure)
		f.logger.Error("submission failed", "activity", activity, "error", err)
		c.showMessage(f, f.failureMessage, view.KindError)
	}
	f.surfaces.Form.SetEnabled(true)
	c.surfaceMu.Unlock()
	f.finish()

	if err != nil {
		return fmt.Errorf("%s %q: %w", f.name, activity, err)
	}

	// A failed reload is rendered into the list by LoadActivities itself.
	if err := c.LoadActivities(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Warn("reload after submission failed", "form", f.name, "error", err)
	}
	return nil
}

// showMessage shows text and schedules it to hide. Callers hold surfaceMu.
func (c *ActivityClient) showMessage(f *form, text string, kind view.MessageKind) {
	f.surfaces.Message.Show(text, kind)
	f.hide.schedule()
}

// Close cancels every in-flight request and pending message hide.
// Operations started after Close return ErrClosed.
func (c *ActivityClient) Close() error {
	c.closeOnce.Do(func() {
		c.cancelLifetime()

		c.surfaceMu.Lock()
		c.signup.hide.stop()
		c.deregister.hide.stop()
		c.surfaceMu.Unlock()
	})
	return nil
}

// requestContext derives the context of one API request: bounded by the
// request timeout and cancelled by Close as well as by parent.
func (c *ActivityClient) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, c.requestTimeout)
	stop := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *ActivityClient) beginLoad(cancel context.CancelFunc) uint64 {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.loadGen++
	c.cancelLoad = cancel
	return c.loadGen
}

func (c *ActivityClient) endLoad(gen uint64) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.loadGen == gen {
		c.cancelLoad = nil
	}
}

func (c *ActivityClient) isCurrentLoad(gen uint64) bool {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loadGen == gen
}

func toCard(a catalog.Activity) view.Card {
	participants := make([]string, len(a.Participants))
	copy(participants, a.Participants)
	return view.Card{
		Name:         a.Name,
		Description:  a.Description,
		Schedule:     a.Schedule,
		SpotsLeft:    a.SpotsLeft(),
		Participants: participants,
	}
}
