// Package ui renders the connection indicator and notification banners for
// the terminal client.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/cesium-ml/baselayer/auth"
	"github.com/cesium-ml/baselayer/notify"
)

const INDICATOR = "●"

// StatusIndicator renders the colored dot and status name.
func StatusIndicator(s auth.Status) string {
	return statusStyle(s).Render(INDICATOR) + " " + labelStyle.Render(string(s))
}

// Banner renders a single notification.
func Banner(n notify.Notification) string {
	level := strings.ToUpper(string(n.Level))
	return levelStyle(n.Level).Render(fmt.Sprintf("[%s] %s", level, n.Text))
}

// Render draws the indicator followed by every notification in order.
func Render(status auth.Status, notifications []notify.Notification) string {
	lines := []string{StatusIndicator(status)}
	if len(notifications) == 0 {
		lines = append(lines, mutedStyle.Render("  no notifications"))
	}
	for _, n := range notifications {
		lines = append(lines, "  "+Banner(n))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Screen redraws to w whenever the status or notification list changes.
type Screen struct {
	mu            sync.Mutex
	w             io.Writer
	status        auth.Status
	notifications []notify.Notification
	last          string
}

func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w, status: auth.StatusDisconnected}
}

func (s *Screen) SetStatus(status auth.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.draw()
}

func (s *Screen) SetNotifications(list []notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = list
	s.draw()
}

// draw writes a frame unless it equals the previous one.
func (s *Screen) draw() {
	frame := Render(s.status, s.notifications)
	if frame == s.last {
		return
	}
	s.last = frame
	_, _ = fmt.Fprintln(s.w, frame)
}
