package base

import "strings"

// PadString pads a string to the specified width with spaces
func PadString(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// TruncateString truncates a string to maxWidth with ellipsis
func TruncateString(s string, maxWidth int) string {
	if len(s) <= maxWidth {
		return s
	}
	if maxWidth < 3 {
		return s[:maxWidth]
	}
	return s[:maxWidth-3] + "..."
}

// UsageBar draws used/total as a bar of width cells.
func UsageBar(used, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := min(width, max(0, used*width/total))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
