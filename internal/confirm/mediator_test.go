package confirm

import (
	"testing"
	"time"

	"github.com/engageworks/engage-go/internal/log"
)

// recordingPresenter captures presented prompts without resolving them.
type recordingPresenter struct {
	presented chan *Pending
	dismissed chan string
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{
		presented: make(chan *Pending, 8),
		dismissed: make(chan string, 8),
	}
}

func (r *recordingPresenter) Present(p *Pending)      { r.presented <- p }
func (r *recordingPresenter) Dismiss(promptID string) { r.dismissed <- promptID }

func mustPresented(t *testing.T, r *recordingPresenter) *Pending {
	t.Helper()
	select {
	case p := <-r.presented:
		return p
	case <-time.After(time.Second):
		t.Fatal("no prompt presented")
		return nil
	}
}

func TestMediatorResolveOnce(t *testing.T) {
	presenter := newRecordingPresenter()
	m := New(presenter, log.Nop())

	p := m.Request(KindEndEngagement, Payload{Title: "End?"})
	if got := mustPresented(t, presenter); got != p {
		t.Fatal("presented a different prompt")
	}

	if !p.Resolve(Accepted) {
		t.Fatal("first resolve rejected")
	}
	if p.Resolve(Declined) {
		t.Fatal("second resolve accepted")
	}

	select {
	case o := <-p.Decision():
		if o != Accepted {
			t.Fatalf("expected Accepted, got %v", o)
		}
	case <-time.After(time.Second):
		t.Fatal("no decision delivered")
	}
}

func TestMediatorQueuesSecondPrompt(t *testing.T) {
	presenter := newRecordingPresenter()
	m := New(presenter, log.Nop())

	first := m.Request(KindMediaUpgrade, Payload{})
	second := m.Request(KindStartScreenShare, Payload{})

	if got := mustPresented(t, presenter); got != first {
		t.Fatal("first prompt not presented first")
	}
	select {
	case <-presenter.presented:
		t.Fatal("second prompt presented while first pending")
	case <-time.After(50 * time.Millisecond):
	}

	first.Resolve(Declined)
	if got := mustPresented(t, presenter); got != second {
		t.Fatal("queued prompt not presented after first resolved")
	}
}

func TestMediatorForceResolveAll(t *testing.T) {
	presenter := newRecordingPresenter()
	m := New(presenter, log.Nop())

	visible := m.Request(KindMediaUpgrade, Payload{})
	queued := m.Request(KindEndEngagement, Payload{})
	mustPresented(t, presenter)

	m.ForceResolveAll(Declined)

	select {
	case id := <-presenter.dismissed:
		if id != visible.ID() {
			t.Fatalf("dismissed wrong prompt: %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("visible prompt not dismissed")
	}

	for _, p := range []*Pending{visible, queued} {
		select {
		case o := <-p.Decision():
			if o != Declined {
				t.Fatalf("expected Declined, got %v", o)
			}
		case <-time.After(time.Second):
			t.Fatal("prompt not force-resolved")
		}
	}

	// Nothing further should be presented.
	select {
	case <-presenter.presented:
		t.Fatal("prompt presented after force-resolve")
	case <-time.After(50 * time.Millisecond):
	}
}
