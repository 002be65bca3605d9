package presentation

import (
	"testing"

	"github.com/engageworks/engage-go/internal/log"
)

// fakeWindow counts presenter calls.
type fakeWindow struct {
	presents  int
	dismisses int
}

func (f *fakeWindow) Present(bool) { f.presents++ }
func (f *fakeWindow) Dismiss(bool) { f.dismisses++ }

func TestMinimizeMaximizeIdempotent(t *testing.T) {
	window := &fakeWindow{}
	c := New(window, log.Nop())

	if !c.Maximize() {
		t.Fatal("first maximize reported no change")
	}
	if c.Maximize() {
		t.Fatal("second maximize reported a change")
	}
	if window.presents != 1 {
		t.Fatalf("present called %d times", window.presents)
	}

	if !c.Minimize() {
		t.Fatal("first minimize reported no change")
	}
	if c.Minimize() {
		t.Fatal("second minimize reported a change")
	}
	if window.dismisses != 1 {
		t.Fatalf("dismiss called %d times", window.dismisses)
	}
}

func TestUnreadCountDoesNotToggleVisibility(t *testing.T) {
	window := &fakeWindow{}
	c := New(window, log.Nop())

	c.SetUnreadCount(5)
	if c.Visible() {
		t.Fatal("unread update made surface visible")
	}
	if window.presents != 0 || window.dismisses != 0 {
		t.Fatal("unread update touched the presenter")
	}
	if c.UnreadCount() != 5 {
		t.Fatalf("unread = %d", c.UnreadCount())
	}

	c.SetUnreadCount(-3)
	if c.UnreadCount() != 0 {
		t.Fatalf("negative unread not clamped: %d", c.UnreadCount())
	}

	c.Maximize()
	c.ClearUnread()
	if c.UnreadCount() != 0 || !c.Visible() {
		t.Fatal("clear unread broke visibility")
	}
}
