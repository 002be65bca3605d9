package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/confirm"
	"github.com/engageworks/engage-go/internal/log"
	"github.com/engageworks/engage-go/internal/media"
)

type fakeWindow struct {
	mu        sync.Mutex
	presents  int
	dismisses int
}

func (w *fakeWindow) Present(bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.presents++
}

func (w *fakeWindow) Dismiss(bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dismisses++
}

func (w *fakeWindow) counts() (presents, dismisses int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.presents, w.dismisses
}

// fakePrompts resolves prompts from a per-kind answer table. Kinds without an
// answer stay open and are delivered on the presented channel instead.
type fakePrompts struct {
	mu        sync.Mutex
	auto      map[confirm.Kind]confirm.Outcome
	presented chan *confirm.Pending
	dismissed chan string
}

func newFakePrompts() *fakePrompts {
	return &fakePrompts{
		auto:      make(map[confirm.Kind]confirm.Outcome),
		presented: make(chan *confirm.Pending, 8),
		dismissed: make(chan string, 8),
	}
}

func (f *fakePrompts) answer(kind confirm.Kind, o confirm.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auto[kind] = o
}

func (f *fakePrompts) Present(p *confirm.Pending) {
	f.presented <- p
	f.mu.Lock()
	o, ok := f.auto[p.Kind()]
	f.mu.Unlock()
	if ok {
		p.Resolve(o)
	}
}

func (f *fakePrompts) Dismiss(id string) { f.dismissed <- id }

type fakeSurveyUI struct {
	mu        sync.Mutex
	answers   []backend.SurveyAnswer
	submit    bool
	presented int
	errs      []error
	onPresent func()
}

func (f *fakeSurveyUI) PresentSurvey(_ context.Context, _ *backend.Survey) ([]backend.SurveyAnswer, bool, error) {
	f.mu.Lock()
	f.presented++
	answers, submit, hook := f.answers, f.submit, f.onPresent
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return answers, submit, nil
}

func (f *fakeSurveyUI) PresentError(_ context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeSurveyUI) stats() (presented int, errs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presented, len(f.errs)
}

type harness struct {
	t       *testing.T
	coord   *Coordinator
	client  *backend.Scripted
	window  *fakeWindow
	prompts *fakePrompts
	surveys *fakeSurveyUI
	ctx     context.Context
}

func newHarness(t *testing.T, opts func(*Options)) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		client:  backend.NewScripted(),
		window:  &fakeWindow{},
		prompts: newFakePrompts(),
		surveys: &fakeSurveyUI{submit: true},
	}

	o := Options{
		Backend:        h.client,
		Window:         h.window,
		Prompts:        h.prompts,
		Surveys:        h.surveys,
		Logger:         log.Nop(),
		VisitorID:      "visitor-1",
		RequestTimeout: 2 * time.Second,
	}
	if opts != nil {
		opts(&o)
	}

	coord, err := New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.coord = coord

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(ctxCancel)
	h.ctx = ctx
	return h
}

func (h *harness) nextEvent() Event {
	h.t.Helper()
	select {
	case ev := <-h.coord.Events():
		return ev
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func (h *harness) expectEvent(kind EventKind) Event {
	h.t.Helper()
	ev := h.nextEvent()
	if ev.Kind != kind {
		h.t.Fatalf("event = %s, want %s", ev.Kind, kind)
	}
	return ev
}

func (h *harness) expectNoEvent() {
	h.t.Helper()
	select {
	case ev := <-h.coord.Events():
		h.t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) nextPrompt() *confirm.Pending {
	h.t.Helper()
	select {
	case p := <-h.prompts.presented:
		return p
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for prompt")
		return nil
	}
}

func (h *harness) engage(id string, showSurvey bool) {
	h.t.Helper()
	h.client.PushEngagementState(backend.EngagementState{
		Phase:        backend.PhaseEngaged,
		EngagementID: id,
		ShowSurvey:   showSurvey,
	})
}

func TestRunTwiceFails(t *testing.T) {
	h := newHarness(t, nil)
	// A served verb proves the harness loop owns the run flag.
	if err := h.coord.Minimize(h.ctx); err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if err := h.coord.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartChatAndEngagedEndViaBack(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	ev := h.expectEvent(EventStarted)
	if ev.EngagementKind != KindChat {
		t.Fatalf("started kind = %s, want chat", ev.EngagementKind)
	}

	h.engage("eng-1", false)

	// Engaged with the ticket consumed: back ends the engagement.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	h.expectEvent(EventEnded)

	if err := h.coord.Back(h.ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Back after end = %v, want ErrNotStarted", err)
	}
}

func TestStartWhileStartedFails(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	if err := h.coord.Start(h.ctx, Direct(KindAudioCall)); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartRequiresKind(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.coord.Start(h.ctx, Direct(KindNone)); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("Start(none) = %v, want ErrInvalidKind", err)
	}
}

func TestBackWithOutstandingTicketMinimizes(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// Still waiting for an operator: back shrinks the surface instead of
	// abandoning the queue place.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	h.expectEvent(EventMinimized)

	// The session is intact.
	if err := h.coord.Maximize(h.ctx); err != nil {
		t.Fatalf("Maximize: %v", err)
	}
	h.expectEvent(EventMaximized)
}

func TestBackOnPreEngagementChatCloses(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// The backend never engaged; simulate the queue going away.
	h.client.PushEngagementState(backend.EngagementState{Phase: backend.PhaseEnded, Reason: "queue_closed"})
	h.expectEvent(EventClosed)
}

func TestDirectCallBackPopsWithoutEnding(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindAudioCall)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	ev := h.expectEvent(EventStarted)
	if ev.EngagementKind != KindAudioCall {
		t.Fatalf("started kind = %s, want audioCall", ev.EngagementKind)
	}
	h.engage("eng-1", false)

	// Back from a directly started call is a screen pop, not a teardown.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	h.expectNoEvent()

	// The session still ends normally.
	h.prompts.answer(confirm.KindEndEngagement, confirm.Accepted)
	if err := h.coord.End(h.ctx, false); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventEnded)
}

func TestUpgradeOfferAccepted(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindMediaUpgrade, confirm.Accepted)
	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaVideo,
		Direction: backend.DirectionTwoWay,
	})
	h.nextPrompt()

	ev := h.expectEvent(EventKindChanged)
	if ev.EngagementKind != KindVideoCall {
		t.Fatalf("kind = %s, want videoCall", ev.EngagementKind)
	}
	accepted, answered := h.client.OfferAnswer("offer-1")
	if !answered || !accepted {
		t.Fatalf("offer answer = (%v, %v), want accepted", accepted, answered)
	}

	// The call came from chat: back returns to the chat thread.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	ev = h.expectEvent(EventKindChanged)
	if ev.EngagementKind != KindChat {
		t.Fatalf("kind after back = %s, want chat", ev.EngagementKind)
	}
}

func TestUpgradeOfferDeclined(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindMediaUpgrade, confirm.Declined)
	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaAudio,
	})
	h.nextPrompt()

	accepted, answered := h.client.OfferAnswer("offer-1")
	if !answered || accepted {
		t.Fatalf("offer answer = (%v, %v), want declined", accepted, answered)
	}
	h.expectNoEvent()
}

func TestUnrecognizedOfferDeclinedWithoutPrompt(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaVideo, // video without a direction
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, answered := h.client.OfferAnswer("offer-1"); answered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	accepted, _ := h.client.OfferAnswer("offer-1")
	if accepted {
		t.Fatalf("unrecognized offer accepted, want declined")
	}
	select {
	case p := <-h.prompts.presented:
		t.Fatalf("unexpected prompt %s", p.Kind())
	default:
	}
}

func TestOfferOutsideLiveModeAutoDeclined(t *testing.T) {
	h := newHarness(t, nil)

	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaAudio,
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, answered := h.client.OfferAnswer("offer-1"); answered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if accepted, _ := h.client.OfferAnswer("offer-1"); accepted {
		t.Fatalf("offer accepted with no session, want declined")
	}
}

func TestInPlaceRenegotiationKeepsScreen(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindAudioCall)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindMediaUpgrade, confirm.Accepted)
	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaVideo,
		Direction: backend.DirectionTwoWay,
	})
	h.nextPrompt()

	ev := h.expectEvent(EventKindChanged)
	if ev.EngagementKind != KindVideoCall {
		t.Fatalf("kind = %s, want videoCall", ev.EngagementKind)
	}

	// Renegotiated in place: back still pops, it does not return to chat.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	h.expectNoEvent()
}

func TestEndEngagedPresentsSurvey(t *testing.T) {
	h := newHarness(t, nil)
	h.client.SetSurvey(&backend.Survey{
		ID:    "survey-1",
		Title: "How did we do?",
		Questions: []backend.SurveyQuestion{
			{ID: "q1", Text: "Rate us", Kind: backend.QuestionScale},
		},
	})
	h.surveys.answers = []backend.SurveyAnswer{{QuestionID: "q1", Value: "5"}}

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", true)

	h.prompts.answer(confirm.KindEndEngagement, confirm.Accepted)
	if err := h.coord.End(h.ctx, true); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventEnded)

	submitted := h.client.SubmittedAnswers()
	if len(submitted) != 1 || len(submitted[0]) != 1 || submitted[0][0].Value != "5" {
		t.Fatalf("submitted = %v, want one answer set", submitted)
	}
}

func TestEndWithoutSurveyRequestSkipsSurvey(t *testing.T) {
	h := newHarness(t, nil)
	h.client.SetSurvey(&backend.Survey{ID: "survey-1"})

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", true)

	h.prompts.answer(confirm.KindEndEngagement, confirm.Accepted)
	if err := h.coord.End(h.ctx, false); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventEnded)

	if presented, _ := h.surveys.stats(); presented != 0 {
		t.Fatalf("survey presented %d times, want 0", presented)
	}
}

func TestEndDeclinedKeepsSession(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindEndEngagement, confirm.Declined)
	if err := h.coord.End(h.ctx, false); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectNoEvent()

	// Still live.
	if err := h.coord.Start(h.ctx, Direct(KindChat)); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestEndEnqueuedCancelsTicket(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// Wait for the queue ticket to land.
	deadline := time.Now().Add(2 * time.Second)
	for h.client.OutstandingTickets() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ticket never issued")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.prompts.answer(confirm.KindLeaveQueue, confirm.Accepted)
	if err := h.coord.End(h.ctx, false); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventClosed)

	// The ticket ack may still be in flight; cancellation lands either way.
	deadline = time.Now().Add(2 * time.Second)
	for h.client.OutstandingTickets() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("outstanding tickets = %d, want 0", h.client.OutstandingTickets())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBackendEndPreemptsPrompt(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	// No auto answer: the end prompt stays open.
	endErr := make(chan error, 1)
	go func() { endErr <- h.coord.End(h.ctx, false) }()
	prompt := h.nextPrompt()
	if prompt.Kind() != confirm.KindEndEngagement {
		t.Fatalf("prompt = %s, want end_engagement", prompt.Kind())
	}

	// The operator ends first: the dialog is dismissed and the remote end
	// wins with a single terminal event.
	h.client.PushEngagementState(backend.EngagementState{
		Phase:        backend.PhaseEnded,
		EngagementID: "eng-1",
		Reason:       "operator_hung_up",
	})

	if err := <-endErr; err != nil {
		t.Fatalf("End: %v", err)
	}
	select {
	case <-h.prompts.dismissed:
	case <-time.After(2 * time.Second):
		t.Fatalf("prompt never dismissed")
	}
	h.expectEvent(EventEnded)
	h.expectNoEvent()
}

func TestScreenShareRequestAcceptedAndStopped(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindStartScreenShare, confirm.Accepted)
	h.client.PushScreenShareState(backend.ScreenShareRequested)
	h.nextPrompt()

	deadline := time.Now().Add(2 * time.Second)
	for len(h.client.ShareVotes()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("screen share never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if votes := h.client.ShareVotes(); !votes[0] {
		t.Fatalf("share vote = %v, want accepted", votes[0])
	}

	h.prompts.answer(confirm.KindEndScreenShare, confirm.Accepted)
	if err := h.coord.StopScreenShare(h.ctx); err != nil {
		t.Fatalf("StopScreenShare: %v", err)
	}
	h.nextPrompt()
	if n := h.client.Stops(); n != 1 {
		t.Fatalf("stops = %d, want 1", n)
	}
}

func TestStopScreenShareWithoutActiveShareFails(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	if err := h.coord.StopScreenShare(h.ctx); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("StopScreenShare = %v, want ErrBadTransition", err)
	}
}

func TestUnreadBadgeNeverTogglesVisibility(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	if err := h.coord.Minimize(h.ctx); err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	h.expectEvent(EventMinimized)
	presents, dismisses := h.window.counts()

	h.client.PushUnreadCount(3)
	h.client.PushUnreadCount(7)
	h.expectNoEvent()

	if p, d := h.window.counts(); p != presents || d != dismisses {
		t.Fatalf("window toggled by unread push: presents %d->%d dismisses %d->%d", presents, p, dismisses, d)
	}

	// Maximize clears the badge and shows exactly once more.
	if err := h.coord.Maximize(h.ctx); err != nil {
		t.Fatalf("Maximize: %v", err)
	}
	h.expectEvent(EventMaximized)
	if p, _ := h.window.counts(); p != presents+1 {
		t.Fatalf("presents = %d, want %d", p, presents+1)
	}
}

func TestMinimizeMaximizeIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// Already visible: no event.
	if err := h.coord.Maximize(h.ctx); err != nil {
		t.Fatalf("Maximize: %v", err)
	}
	h.expectNoEvent()

	if err := h.coord.Minimize(h.ctx); err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	h.expectEvent(EventMinimized)

	if err := h.coord.Minimize(h.ctx); err != nil {
		t.Fatalf("second Minimize: %v", err)
	}
	h.expectNoEvent()
}

func TestSecureMessagingBackMinimizes(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindMessaging)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	ev := h.expectEvent(EventStarted)
	if ev.EngagementKind != KindMessaging {
		t.Fatalf("started kind = %s, want messaging", ev.EngagementKind)
	}

	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	h.expectEvent(EventMinimized)
}

func TestSecureMessagingBackRestartsInitialKind(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Indirect(KindMessaging, KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// Launched indirectly over chat: back falls through to the chat flow.
	if err := h.coord.Back(h.ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	ev := h.expectEvent(EventKindChanged)
	if ev.EngagementKind != KindChat {
		t.Fatalf("kind after back = %s, want chat", ev.EngagementKind)
	}
}

func TestSwitchToLeavesSecureMessaging(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindMessaging)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	h.prompts.answer(confirm.KindLeaveQueue, confirm.Accepted)
	if err := h.coord.SwitchTo(h.ctx, KindAudioCall); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	h.nextPrompt()

	ev := h.expectEvent(EventKindChanged)
	if ev.EngagementKind != KindAudioCall {
		t.Fatalf("kind = %s, want audioCall", ev.EngagementKind)
	}
}

func TestSwitchToDeclinedStaysSecure(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindMessaging)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	h.prompts.answer(confirm.KindLeaveQueue, confirm.Declined)
	if err := h.coord.SwitchTo(h.ctx, KindChat); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	h.nextPrompt()
	h.expectNoEvent()
}

func TestSwitchToOutsideSecureFails(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	if err := h.coord.SwitchTo(h.ctx, KindAudioCall); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("SwitchTo = %v, want ErrBadTransition", err)
	}
}

type failingEnqueue struct {
	*backend.Scripted
	err error
}

func (f *failingEnqueue) EnqueueForEngagement(context.Context, backend.MediaKind) (backend.QueueTicket, error) {
	return backend.QueueTicket{}, f.err
}

func TestEnqueueFailureClosesSession(t *testing.T) {
	wantErr := errors.New("queue unavailable")
	h := newHarness(t, func(o *Options) {
		o.Backend = &failingEnqueue{Scripted: backend.NewScripted(), err: wantErr}
	})

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.expectEvent(EventClosed)

	if _, errs := h.surveys.stats(); errs != 1 {
		t.Fatalf("presented errors = %d, want 1", errs)
	}
}

func TestBackendEndedWhileIdleIsIgnored(t *testing.T) {
	h := newHarness(t, nil)

	h.client.PushEngagementState(backend.EngagementState{Phase: backend.PhaseEnded, Reason: "stale"})
	h.expectNoEvent()
}

// gatedEnqueue holds the enqueue ack until released, then fails it.
type gatedEnqueue struct {
	*backend.Scripted
	release chan struct{}
	err     error
}

func (g *gatedEnqueue) EnqueueForEngagement(ctx context.Context, _ backend.MediaKind) (backend.QueueTicket, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return backend.QueueTicket{}, ctx.Err()
	}
	return backend.QueueTicket{}, g.err
}

func TestEnqueueFailureResolvesOpenPrompt(t *testing.T) {
	gate := &gatedEnqueue{
		Scripted: backend.NewScripted(),
		release:  make(chan struct{}),
		err:      errors.New("queue unavailable"),
	}
	h := newHarness(t, func(o *Options) { o.Backend = gate })

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)

	// An offer arrives before the queue ack; its prompt stays open.
	gate.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaAudio,
	})
	prompt := h.nextPrompt()
	if prompt.Kind() != confirm.KindMediaUpgrade {
		t.Fatalf("prompt = %s, want media_upgrade", prompt.Kind())
	}

	// The ack fails underneath the open dialog: the session closes and the
	// dialog must not outlive it.
	close(gate.release)
	h.expectEvent(EventClosed)

	select {
	case <-h.prompts.dismissed:
	case <-time.After(2 * time.Second):
		t.Fatalf("prompt never dismissed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, answered := gate.OfferAnswer("offer-1"); answered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if accepted, _ := gate.OfferAnswer("offer-1"); accepted {
		t.Fatalf("offer accepted over a closed session, want declined")
	}
	if _, errs := h.surveys.stats(); errs != 1 {
		t.Fatalf("presented errors = %d, want 1", errs)
	}
}

func TestNoStaleCallEventsAfterEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.client.SetSurvey(&backend.Survey{
		ID:        "survey-1",
		Questions: []backend.SurveyQuestion{{ID: "q1", Text: "Rate us", Kind: backend.QuestionScale}},
	})
	h.surveys.answers = []backend.SurveyAnswer{{QuestionID: "q1", Value: "4"}}

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	h.expectEvent(EventStarted)
	h.engage("eng-1", true)

	h.prompts.answer(confirm.KindMediaUpgrade, confirm.Accepted)
	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaAudio,
	})
	h.nextPrompt()
	h.expectEvent(EventKindChanged)

	// The loop is quiet; grab the live call object.
	session, ok := h.coord.mode.CallSession()
	if !ok {
		t.Fatalf("no call session after upgrade")
	}
	call := session.Call

	// Renegotiate the old call from inside the survey presentation: by the
	// time the teardown's async work runs, the observation must be gone.
	h.surveys.onPresent = func() { call.setKind(CallVideoTwoWay) }

	h.prompts.answer(confirm.KindEndEngagement, confirm.Accepted)
	if err := h.coord.End(h.ctx, true); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventEnded)
	h.expectNoEvent()

	if presented, _ := h.surveys.stats(); presented != 1 {
		t.Fatalf("survey presented %d times, want 1", presented)
	}
	if len(call.observers) != 0 {
		t.Fatalf("call still observed after end: %d observers", len(call.observers))
	}
}

// fakeEngine mints deterministic media rooms and join credentials.
type fakeEngine struct {
	mu     sync.Mutex
	closed []string
}

func (e *fakeEngine) ProvisionRoom(_ context.Context, engagementID string) (string, error) {
	return "room-" + engagementID, nil
}

func (e *fakeEngine) CloseRoom(_ context.Context, roomName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = append(e.closed, roomName)
	return nil
}

func (e *fakeEngine) JoinCredentials(_ context.Context, roomName, visitorID string) (*media.JoinInfo, error) {
	return &media.JoinInfo{
		URL:      "ws://media.local",
		Token:    "token-1",
		RoomName: roomName,
		Identity: visitorID,
	}, nil
}

func (e *fakeEngine) closedRooms() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.closed...)
}

func TestCallStartCarriesJoinCredentials(t *testing.T) {
	engine := &fakeEngine{}
	h := newHarness(t, func(o *Options) { o.Engine = engine })

	if err := h.coord.Start(h.ctx, Direct(KindAudioCall)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	ev := h.expectEvent(EventStarted)
	if ev.Join == nil || ev.Join.Identity != "visitor-1" || ev.Join.Token == "" {
		t.Fatalf("started without join credentials: %+v", ev.Join)
	}

	h.engage("eng-1", false)
	h.prompts.answer(confirm.KindEndEngagement, confirm.Accepted)
	if err := h.coord.End(h.ctx, false); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.nextPrompt()
	h.expectEvent(EventEnded)

	if closed := engine.closedRooms(); len(closed) != 1 || closed[0] != ev.Join.RoomName {
		t.Fatalf("closed rooms = %v, want [%s]", closed, ev.Join.RoomName)
	}
}

func TestUpgradeCarriesJoinCredentials(t *testing.T) {
	engine := &fakeEngine{}
	h := newHarness(t, func(o *Options) { o.Engine = engine })

	if err := h.coord.Start(h.ctx, Direct(KindChat)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.expectEvent(EventMaximized)
	if ev := h.expectEvent(EventStarted); ev.Join != nil {
		t.Fatalf("chat start carried join credentials: %+v", ev.Join)
	}
	h.engage("eng-1", false)

	h.prompts.answer(confirm.KindMediaUpgrade, confirm.Accepted)
	h.client.PushUpgradeOffer(backend.MediaUpgradeOffer{
		ID:        "offer-1",
		MediaKind: backend.MediaVideo,
		Direction: backend.DirectionTwoWay,
	})
	h.nextPrompt()

	ev := h.expectEvent(EventKindChanged)
	if ev.Join == nil || ev.Join.RoomName == "" {
		t.Fatalf("upgrade without join credentials: %+v", ev.Join)
	}
}

func TestTerminalStateSurvivesEventOverflow(t *testing.T) {
	// The loop is deliberately not running: fill the push buffer by hand.
	coord, err := New(Options{
		Backend: backend.NewScripted(),
		Window:  &fakeWindow{},
		Prompts: newFakePrompts(),
		Surveys: &fakeSurveyUI{},
		Logger:  log.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < cap(coord.backendEvents); i++ {
		coord.post(backendEvent{kind: evUnread, unread: i})
	}
	coord.post(backendEvent{kind: evState, state: backend.EngagementState{Phase: backend.PhaseEnded}})
	coord.post(backendEvent{kind: evUnread, unread: -1})

	for i := 0; i < cap(coord.backendEvents); i++ {
		<-coord.backendEvents
	}
	select {
	case ev := <-coord.backendEvents:
		if ev.kind != evState || ev.state.Phase != backend.PhaseEnded {
			t.Fatalf("survivor = %+v, want terminal state", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("terminal state lost in overflow")
	}
	select {
	case ev := <-coord.backendEvents:
		t.Fatalf("dropped push resurfaced: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
