package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cesium-ml/baselayer/auth"
	"github.com/cesium-ml/baselayer/notify"
)

var (
	colorRed    = lipgloss.Color("#d9534f")
	colorOrange = lipgloss.Color("#f0ad4e")
	colorGreen  = lipgloss.Color("#5cb85c")
	colorBlue   = lipgloss.Color("#5bc0de")
	colorGray   = lipgloss.Color("#777777")
)

var statusColors = map[string]lipgloss.Color{
	"red":    colorRed,
	"orange": colorOrange,
	"green":  colorGreen,
}

var levelColors = map[notify.Level]lipgloss.Color{
	notify.LevelInfo:    colorBlue,
	notify.LevelWarning: colorOrange,
	notify.LevelError:   colorRed,
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorGray)
	bannerBase = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

func statusStyle(s auth.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(statusColors[s.Color()]).Bold(true)
}

func levelStyle(l notify.Level) lipgloss.Style {
	color, ok := levelColors[l]
	if !ok {
		color = colorBlue
	}
	return bannerBase.Foreground(color)
}
