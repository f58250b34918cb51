package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Amber     = lipgloss.Color("#E5A00D")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Amber)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	CueStyle = lipgloss.NewStyle().
			Foreground(White).
			Italic(true)
)

// Badges
var (
	MethodBadge = lipgloss.NewStyle().
			Foreground(White).
			Background(DimGray).
			Padding(0, 1)

	FavoriteBadge = lipgloss.NewStyle().
			Foreground(Red)

	SkipPromptStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)
)

// Panel styles
var (
	OverlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Amber).
			Padding(1, 3)
)
