package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nomis52/signup/catalog"
	"github.com/nomis52/signup/clients/signupclient"
	"github.com/nomis52/signup/clients/signupclient/signupclienttest"
	"github.com/nomis52/signup/metrics"
	"github.com/nomis52/signup/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI lets each test script the API's answers.
type fakeAPI struct {
	activities func(ctx context.Context) (*catalog.Catalog, error)
	signup     func(ctx context.Context, activity, email string) (string, error)
	deregister func(ctx context.Context, activity, email string) (string, error)
}

func (f *fakeAPI) Activities(ctx context.Context) (*catalog.Catalog, error) {
	return f.activities(ctx)
}

func (f *fakeAPI) Signup(ctx context.Context, activity, email string) (string, error) {
	return f.signup(ctx, activity, email)
}

func (f *fakeAPI) Deregister(ctx context.Context, activity, email string) (string, error) {
	return f.deregister(ctx, activity, email)
}

func staticCatalog(t *testing.T, activities ...catalog.Activity) func(context.Context) (*catalog.Catalog, error) {
	t.Helper()
	cat, err := catalog.New(activities...)
	require.NoError(t, err)
	return func(context.Context) (*catalog.Catalog, error) { return cat, nil }
}

type harness struct {
	api    *signupclienttest.Server
	page   *view.Page
	clock  *fakeClock
	client *ActivityClient
}

// newHarness wires an ActivityClient to an in-memory page and an httptest activities service.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	srv := signupclienttest.NewServer(t)
	api, err := signupclient.New(srv.URL)
	require.NoError(t, err)

	page := view.NewPage(nil)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger())}, opts...)
	client, err := New(api, page.Surfaces(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return &harness{api: srv, page: page, clock: clock, client: client}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newFakeClient(t *testing.T, api API, opts ...Option) (*ActivityClient, *view.Page, *fakeClock) {
	t.Helper()
	page := view.NewPage(nil)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger())}, opts...)
	client, err := New(api, page.Surfaces(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, page, clock
}

func TestNew(t *testing.T) {
	page := view.NewPage(nil)

	t.Run("valid", func(t *testing.T) {
		client, err := New(&fakeAPI{}, page.Surfaces())
		require.NoError(t, err)
		assert.Equal(t, DefaultRequestTimeout, client.requestTimeout)
		assert.Equal(t, DefaultMessageTTL, client.messageTTL)
	})

	t.Run("nil api", func(t *testing.T) {
		_, err := New(nil, page.Surfaces())
		assert.Error(t, err)
	})

	t.Run("missing surfaces", func(t *testing.T) {
		surfaces := page.Surfaces()
		surfaces.List = nil
		surfaces.Deregister.Message = nil

		_, err := New(&fakeAPI{}, surfaces)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list view is required")
		assert.Contains(t, err.Error(), "deregister message area is required")
	})

	t.Run("non-positive durations ignored", func(t *testing.T) {
		client, err := New(&fakeAPI{}, page.Surfaces(), WithRequestTimeout(0), WithMessageTTL(-time.Second))
		require.NoError(t, err)
		assert.Equal(t, DefaultRequestTimeout, client.requestTimeout)
		assert.Equal(t, DefaultMessageTTL, client.messageTTL)
	})
}

func TestLoadActivities(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.LoadActivities(context.Background()))

	snap := h.page.Snapshot()
	require.Len(t, snap.Cards, 3)
	assert.Equal(t, 3, snap.ListElements())
	assert.Empty(t, snap.Failure)

	seed := signupclienttest.Seed()
	for i, card := range snap.Cards {
		assert.Equal(t, seed[i].Name, card.Name)
		assert.Equal(t, seed[i].Description, card.Description)
		assert.Equal(t, seed[i].Schedule, card.Schedule)
		assert.Equal(t, seed[i].Participants, card.Participants)
	}
	assert.Equal(t, "10 spots left", snap.Cards[0].Availability())
	assert.Equal(t, "18 spots left", snap.Cards[1].Availability())
	assert.Equal(t, "0 spots left", snap.Cards[2].Availability())

	for _, form := range []view.FormSnapshot{snap.Signup, snap.Deregister} {
		require.Len(t, form.Options, 4)
		assert.Equal(t, view.DefaultPlaceholder, form.Options[0].Label)
		assert.True(t, form.Options[0].Disabled)
		assert.Equal(t, "Chess Club", form.Options[1].Value)
		assert.Equal(t, "Programming Class", form.Options[2].Value)
		assert.Equal(t, "Go Club", form.Options[3].Value)
	}
}

func TestLoadActivities_Idempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.LoadActivities(context.Background()))
	first := h.page.Snapshot()
	require.NoError(t, h.client.LoadActivities(context.Background()))
	second := h.page.Snapshot()

	assert.Equal(t, first, second)
	assert.Len(t, second.Signup.Options, 4)
}

func TestLoadActivities_OverCapacityClamped(t *testing.T) {
	api := &fakeAPI{activities: staticCatalog(t, catalog.Activity{
		Name:            "Full",
		MaxParticipants: 1,
		Participants:    []string{"a@x", "b@x"},
	})}
	client, page, _ := newFakeClient(t, api)

	require.NoError(t, client.LoadActivities(context.Background()))
	assert.Equal(t, "0 spots left", page.Snapshot().Cards[0].Availability())
}

func TestLoadActivities_Failure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.LoadActivities(context.Background()))
	before := h.page.Snapshot()

	h.api.FailActivities(http.StatusInternalServerError)
	err := h.client.LoadActivities(context.Background())
	require.Error(t, err)

	var apiErr *signupclient.APIError
	assert.ErrorAs(t, err, &apiErr)

	snap := h.page.Snapshot()
	assert.Equal(t, 1, snap.ListElements())
	assert.Equal(t, LoadFailureMessage, snap.Failure)
	assert.Empty(t, snap.Cards)
	assert.Equal(t, before.Signup.Options, snap.Signup.Options)
	assert.Equal(t, before.Deregister.Options, snap.Deregister.Options)

	h.api.FailActivities(0)
	require.NoError(t, h.client.LoadActivities(context.Background()))
	assert.Equal(t, 3, h.page.Snapshot().ListElements())
}

func TestLoadActivities_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["not", "an", "object"]`))
	}))
	defer srv.Close()

	api, err := signupclient.New(srv.URL)
	require.NoError(t, err)
	client, page, _ := newFakeClient(t, api)

	err = client.LoadActivities(context.Background())
	var decodeErr *signupclient.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, LoadFailureMessage, page.Snapshot().Failure)
}

func TestLoadActivities_Timeout(t *testing.T) {
	api := &fakeAPI{activities: func(ctx context.Context) (*catalog.Catalog, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	client, page, _ := newFakeClient(t, api, WithRequestTimeout(20*time.Millisecond))

	err := client.LoadActivities(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, LoadFailureMessage, page.Snapshot().Failure)
}

func TestLoadActivities_CallerCancelled(t *testing.T) {
	api := &fakeAPI{activities: func(ctx context.Context) (*catalog.Catalog, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	client, page, _ := newFakeClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.LoadActivities(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Snapshot().Failure)
}

func TestLoadActivities_Superseded(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	newer := staticCatalog(t, catalog.Activity{Name: "Newer", MaxParticipants: 2})

	api := &fakeAPI{activities: func(ctx context.Context) (*catalog.Catalog, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return newer(ctx)
	}}
	client, page, _ := newFakeClient(t, api)

	older := make(chan error, 1)
	go func() { older <- client.LoadActivities(context.Background()) }()
	<-started

	require.NoError(t, client.LoadActivities(context.Background()))

	select {
	case err := <-older:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("older load was not cancelled")
	}

	snap := page.Snapshot()
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "Newer", snap.Cards[0].Name)
	assert.Empty(t, snap.Failure)
}

func TestSubmitSignup_Success(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.LoadActivities(context.Background()))
	require.NoError(t, h.page.SignupSelector.Select("Chess Club"))
	h.page.SignupForm.SetEmail("new@mergington.edu")

	err := h.client.SubmitSignup(context.Background(), "Chess Club", "new@mergington.edu")
	require.NoError(t, err)

	snap := h.page.Snapshot()
	assert.Equal(t, view.MessageState{
		Text:    "Signed up new@mergington.edu for Chess Club",
		Kind:    view.KindSuccess,
		Visible: true,
	}, snap.Signup.Message)
	assert.Equal(t, "success", snap.Signup.Message.Class())
	assert.Equal(t, "", snap.Signup.Email)
	assert.Equal(t, "", snap.Signup.Selected)
	assert.True(t, snap.Signup.Enabled)

	// The catalog was reloaded after the mutation.
	assert.Contains(t, snap.Cards[0].Participants, "new@mergington.edu")
	assert.Equal(t, "9 spots left", snap.Cards[0].Availability())
	assert.Equal(t, []string{
		"GET /activities",
		"POST /activities/Chess Club/signup",
		"GET /activities",
	}, h.api.Requests())

	assert.False(t, snap.Deregister.Message.Visible)
}

func TestSubmitSignup_APIError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.LoadActivities(context.Background()))
	require.NoError(t, h.page.SignupSelector.Select("Chess Club"))
	h.page.SignupForm.SetEmail("michael@mergington.edu")

	err := h.client.SubmitSignup(context.Background(), "Chess Club", "michael@mergington.edu")

	var apiErr *signupclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	snap := h.page.Snapshot()
	assert.Equal(t, "Student is already signed up", snap.Signup.Message.Text)
	assert.Equal(t, "error", snap.Signup.Message.Class())
	// No reset and no reload on failure.
	assert.Equal(t, "michael@mergington.edu", snap.Signup.Email)
	assert.Equal(t, "Chess Club", snap.Signup.Selected)
	assert.True(t, snap.Signup.Enabled)
	assert.Len(t, h.api.Requests(), 2)
}

func TestSubmit_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		signup   bool
		err      error
		wantText string
	}{
		{
			name:     "signup detail shown verbatim",
			signup:   true,
			err:      &signupclient.APIError{StatusCode: 400, Detail: "Already registered"},
			wantText: "Already registered",
		},
		{
			name:     "signup missing detail",
			signup:   true,
			err:      &signupclient.APIError{StatusCode: 500},
			wantText: FallbackErrorMessage,
		},
		{
			name:     "signup transport failure",
			signup:   true,
			err:      &signupclient.TransportError{Op: "sending request", Err: errors.New("connection refused")},
			wantText: SignupFailureMessage,
		},
		{
			name:     "signup decode failure",
			signup:   true,
			err:      &signupclient.DecodeError{Op: "decoding error response", StatusCode: 502, Err: errors.New("invalid character '<'")},
			wantText: SignupFailureMessage,
		},
		{
			name:     "deregister detail shown verbatim",
			err:      &signupclient.APIError{StatusCode: 400, Detail: "Student is not signed up for this activity"},
			wantText: "Student is not signed up for this activity",
		},
		{
			name:     "deregister transport failure",
			err:      &signupclient.TransportError{Op: "sending request", Err: errors.New("connection reset")},
			wantText: DeregisterFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := func(context.Context, string, string) (string, error) { return "", tt.err }
			api := &fakeAPI{signup: fail, deregister: fail}
			client, page, _ := newFakeClient(t, api)

			submit, form, other := client.SubmitDeregister, page.Deregister(), page.Signup()
			if tt.signup {
				submit, form, other = client.SubmitSignup, page.Signup(), page.Deregister()
			}

			err := submit(context.Background(), "Chess Club", "a@b.c")
			assert.ErrorIs(t, err, tt.err)

			msg := form.Message.State()
			assert.Equal(t, tt.wantText, msg.Text)
			assert.Equal(t, view.KindError, msg.Kind)
			assert.True(t, msg.Visible)
			assert.True(t, form.Form.Enabled())
			assert.False(t, other.Message.State().Visible)
		})
	}
}

func TestMessageAutoHide(t *testing.T) {
	h := newHarness(t)

	err := h.client.SubmitSignup(context.Background(), "Chess Club", "michael@mergington.edu")
	require.Error(t, err)
	require.True(t, h.page.SignupMessage.State().Visible)

	h.clock.Advance(4999 * time.Millisecond)
	assert.True(t, h.page.SignupMessage.State().Visible)

	h.clock.Advance(time.Millisecond)
	state := h.page.SignupMessage.State()
	assert.False(t, state.Visible)
	assert.Equal(t, "error hidden", state.Class())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestMessageAutoHide_Overlapping(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.client.SubmitSignup(context.Background(), "Chess Club", "michael@mergington.edu"))
	h.clock.Advance(3 * time.Second)

	require.NoError(t, h.client.SubmitSignup(context.Background(), "Chess Club", "later@mergington.edu"))
	assert.Equal(t, 1, h.clock.Pending(), "one pending hide per message area")

	// The first message's hide would have fired here.
	h.clock.Advance(2 * time.Second)
	state := h.page.SignupMessage.State()
	assert.True(t, state.Visible)
	assert.Equal(t, "Signed up later@mergington.edu for Chess Club", state.Text)

	h.clock.Advance(3 * time.Second)
	assert.False(t, h.page.SignupMessage.State().Visible)
}

func TestMessageAutoHide_IndependentAreas(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.client.SubmitSignup(context.Background(), "Chess Club", "michael@mergington.edu"))
	h.clock.Advance(2 * time.Second)
	require.Error(t, h.client.SubmitDeregister(context.Background(), "Chess Club", "nobody@mergington.edu"))
	assert.Equal(t, 2, h.clock.Pending())

	h.clock.Advance(3 * time.Second)
	assert.False(t, h.page.SignupMessage.State().Visible)
	assert.True(t, h.page.DeregisterMessage.State().Visible)

	h.clock.Advance(2 * time.Second)
	assert.False(t, h.page.DeregisterMessage.State().Visible)
}

func TestWithMessageTTL(t *testing.T) {
	h := newHarness(t, WithMessageTTL(time.Second))

	require.Error(t, h.client.SubmitSignup(context.Background(), "Nope", "a@b.c"))
	assert.Equal(t, "Activity not found", h.page.SignupMessage.State().Text)

	h.clock.Advance(time.Second)
	assert.False(t, h.page.SignupMessage.State().Visible)
}

func TestSubmit_InProgressGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		activities: staticCatalog(t,
			catalog.Activity{Name: "Chess Club", MaxParticipants: 5},
			catalog.Activity{Name: "Go Club", MaxParticipants: 5},
		),
		signup: func(ctx context.Context, activity, email string) (string, error) {
			close(entered)
			<-release
			return "Signed up", nil
		},
		deregister: func(ctx context.Context, activity, email string) (string, error) {
			return "Deregistered", nil
		},
	}
	client, page, _ := newFakeClient(t, api)
	require.NoError(t, client.LoadActivities(context.Background()))

	first := make(chan error, 1)
	go func() { first <- client.SubmitSignup(context.Background(), "Chess Club", "a@b.c") }()
	<-entered

	assert.False(t, page.SignupForm.Enabled())
	assert.Equal(t, "Chess Club", page.SignupForm.Activity())
	assert.Equal(t, "a@b.c", page.SignupForm.Email())

	err := client.SubmitSignup(context.Background(), "Go Club", "late@b.c")
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	// A rejected submission leaves the in-flight values on the form.
	assert.Equal(t, "Chess Club", page.SignupForm.Activity())
	assert.Equal(t, "a@b.c", page.SignupForm.Email())

	// The other form is independent.
	require.NoError(t, client.SubmitDeregister(context.Background(), "Chess Club", "x@y.z"))
	assert.True(t, page.DeregisterForm.Enabled())

	close(release)
	select {
	case err := <-first:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not finish")
	}
	assert.True(t, page.SignupForm.Enabled())
	assert.Equal(t, "Signed up", page.SignupMessage.State().Text)
}

func TestClose(t *testing.T) {
	t.Run("cancels in-flight request", func(t *testing.T) {
		entered := make(chan struct{})
		api := &fakeAPI{signup: func(ctx context.Context, activity, email string) (string, error) {
			close(entered)
			<-ctx.Done()
			return "", &signupclient.TransportError{Op: "sending request", Err: ctx.Err()}
		}}
		client, page, _ := newFakeClient(t, api)

		result := make(chan error, 1)
		go func() { result <- client.SubmitSignup(context.Background(), "Chess Club", "a@b.c") }()
		<-entered
		require.NoError(t, client.Close())

		select {
		case err := <-result:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("request was not cancelled")
		}
		assert.False(t, page.SignupMessage.State().Visible)
	})

	t.Run("cancels pending hide", func(t *testing.T) {
		h := newHarness(t)
		require.Error(t, h.client.SubmitSignup(context.Background(), "Chess Club", "michael@mergington.edu"))
		require.Equal(t, 1, h.clock.Pending())

		require.NoError(t, h.client.Close())
		assert.Equal(t, 0, h.clock.Pending())

		h.clock.Advance(time.Minute)
		assert.True(t, h.page.SignupMessage.State().Visible)
	})

	t.Run("rejects later operations", func(t *testing.T) {
		client, _, _ := newFakeClient(t, &fakeAPI{})
		require.NoError(t, client.Close())
		require.NoError(t, client.Close())

		assert.ErrorIs(t, client.LoadActivities(context.Background()), ErrClosed)
		assert.ErrorIs(t, client.SubmitSignup(context.Background(), "a", "b"), ErrClosed)
		assert.ErrorIs(t, client.SubmitDeregister(context.Background(), "a", "b"), ErrClosed)
	})
}

func TestMetrics(t *testing.T) {
	reg, err := metrics.NewScrapeRegistry("signup")
	require.NoError(t, err)
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	h := newHarness(t, WithMetrics(m))
	require.NoError(t, h.client.LoadActivities(context.Background()))
	require.NoError(t, h.client.SubmitSignup(context.Background(), "Chess Club", "new@mergington.edu"))
	require.Error(t, h.client.SubmitDeregister(context.Background(), "Chess Club", "nobody@mergington.edu"))

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `signup_catalog_loads_total{outcome="success"} 2`)
	assert.Contains(t, body, `signup_submissions_total{form="signup",outcome="success"} 1`)
	assert.Contains(t, body, `signup_submissions_total{form="deregister",outcome="api_error"} 1`)
	assert.Contains(t, body, "signup_activities 3")
	assert.Contains(t, body, `signup_activity_spots_left{activity="Chess Club"} 9`)
}

func TestMetrics_DroppedActivityForgotten(t *testing.T) {
	reg, err := metrics.NewScrapeRegistry("signup")
	require.NoError(t, err)
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	chess := catalog.Activity{Name: "Chess Club", MaxParticipants: 12}
	drama := catalog.Activity{Name: "Drama Club", MaxParticipants: 4}
	current := staticCatalog(t, chess, drama)
	api := &fakeAPI{activities: func(ctx context.Context) (*catalog.Catalog, error) { return current(ctx) }}
	client, _, _ := newFakeClient(t, api, WithMetrics(m))

	scrape := func() string {
		w := httptest.NewRecorder()
		reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return w.Body.String()
	}

	require.NoError(t, client.LoadActivities(context.Background()))
	assert.Contains(t, scrape(), `signup_activity_spots_left{activity="Drama Club"} 4`)

	current = staticCatalog(t, chess)
	require.NoError(t, client.LoadActivities(context.Background()))
	body := scrape()
	assert.Contains(t, body, `signup_activity_spots_left{activity="Chess Club"} 12`)
	assert.NotContains(t, body, `activity="Drama Club"`)
}

func TestLoggerChannels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fail := func(context.Context, string, string) (string, error) {
		return "", &signupclient.TransportError{Op: "sending request", Err: errors.New("boom")}
	}
	api := &fakeAPI{
		activities: func(context.Context) (*catalog.Catalog, error) { return nil, errors.New("down") },
		signup:     fail,
		deregister: fail,
	}
	client, _, _ := newFakeClient(t, api, WithLogger(logger))

	require.Error(t, client.LoadActivities(context.Background()))
	require.Error(t, client.SubmitSignup(context.Background(), "Chess Club", "a@b.c"))
	require.Error(t, client.SubmitDeregister(context.Background(), "Chess Club", "a@b.c"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "channel=catalog")
	assert.Contains(t, lines[1], "channel=signup")
	assert.Contains(t, lines[2], "channel=deregister")
	assert.Contains(t, lines[2], "boom")
}
