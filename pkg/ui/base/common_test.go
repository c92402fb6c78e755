package base

import "testing"

func TestUsageBar(t *testing.T) {
	tests := []struct {
		used, total, width int
		want               string
	}{
		{0, 10, 4, "░░░░"},
		{5, 10, 4, "██░░"},
		{10, 10, 4, "████"},
		{20, 10, 4, "████"},
		{1, 0, 4, ""},
	}
	for _, tt := range tests {
		if got := UsageBar(tt.used, tt.total, tt.width); got != tt.want {
			t.Errorf("UsageBar(%d, %d, %d) = %q, want %q", tt.used, tt.total, tt.width, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("abcdefgh", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("abc", 6); got != "abc" {
		t.Errorf("got %q", got)
	}
}
