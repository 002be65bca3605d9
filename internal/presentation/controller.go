// Package presentation tracks the engagement surface's visibility and badge.
package presentation

import "github.com/rs/zerolog"

// WindowPresenter is the host's animation-capable present/dismiss primitive
// for the whole engagement surface.
type WindowPresenter interface {
	Present(animated bool)
	Dismiss(animated bool)
}

// Controller owns two independent values: whether the engagement surface is
// on screen, and the unread-message badge. Badge changes never toggle
// visibility by themselves.
type Controller struct {
	presenter WindowPresenter
	log       *zerolog.Logger

	visible bool
	unread  int
}

// New builds a controller around the host's window presenter. The surface
// starts hidden.
func New(presenter WindowPresenter, logger *zerolog.Logger) *Controller {
	return &Controller{presenter: presenter, log: logger}
}

// Maximize shows the engagement surface. Idempotent: returns true only when
// visibility actually changed.
func (c *Controller) Maximize() bool {
	if c.visible {
		return false
	}
	c.visible = true
	c.presenter.Present(true)
	c.log.Debug().Msg("engagement surface maximized")
	return true
}

// Minimize hides the engagement surface. Idempotent: returns true only when
// visibility actually changed.
func (c *Controller) Minimize() bool {
	if !c.visible {
		return false
	}
	c.visible = false
	c.presenter.Dismiss(true)
	c.log.Debug().Msg("engagement surface minimized")
	return true
}

// Visible reports whether the surface is on screen.
func (c *Controller) Visible() bool { return c.visible }

// SetUnreadCount updates the badge. Visibility is untouched.
func (c *Controller) SetUnreadCount(n int) {
	if n < 0 {
		n = 0
	}
	c.unread = n
}

// UnreadCount returns the badge value.
func (c *Controller) UnreadCount() int { return c.unread }

// ClearUnread resets the badge, typically on maximize.
func (c *Controller) ClearUnread() { c.unread = 0 }
