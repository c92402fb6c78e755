package base

import "github.com/charmbracelet/lipgloss"

// ColorPalette defines a consistent color scheme
type ColorPalette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

var DarkPalette = ColorPalette{
	Primary:   lipgloss.Color("#7C3AED"),
	Secondary: lipgloss.Color("#06B6D4"),
	Success:   lipgloss.Color("#10B981"),
	Warning:   lipgloss.Color("#F59E0B"),
	Error:     lipgloss.Color("#EF4444"),
	Muted:     lipgloss.Color("#94A3B8"),
}

var LightPalette = ColorPalette{
	Primary:   lipgloss.Color("#5A56E0"),
	Secondary: lipgloss.Color("#EE6FF8"),
	Success:   lipgloss.Color("#02BA84"),
	Warning:   lipgloss.Color("#FF8C00"),
	Error:     lipgloss.Color("#FF5F56"),
	Muted:     lipgloss.Color("#9B9B9B"),
}

func adaptive(pick func(ColorPalette) lipgloss.Color) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: string(pick(LightPalette)), Dark: string(pick(DarkPalette))}
}

// Adaptive colors follow the terminal background.
var (
	AdaptivePrimary   = adaptive(func(p ColorPalette) lipgloss.Color { return p.Primary })
	AdaptiveSecondary = adaptive(func(p ColorPalette) lipgloss.Color { return p.Secondary })
	AdaptiveSuccess   = adaptive(func(p ColorPalette) lipgloss.Color { return p.Success })
	AdaptiveWarning   = adaptive(func(p ColorPalette) lipgloss.Color { return p.Warning })
	AdaptiveError     = adaptive(func(p ColorPalette) lipgloss.Color { return p.Error })
	AdaptiveMuted     = adaptive(func(p ColorPalette) lipgloss.Color { return p.Muted })
)
