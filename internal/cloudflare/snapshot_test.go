package cloudflare

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		decimals []int
		want     string
	}{
		{0, nil, "0 B"},
		{512, nil, "512 B"},
		{1024, nil, "1 KB"},
		{1536, []int{2}, "1.5 KB"},
		{1536, []int{0}, "2 KB"},
		{1048576, nil, "1 MB"},
		{1073741824, nil, "1 GB"},
		{1099511627776, nil, "1 TB"},
		{1125899906842624, nil, "1024 TB"},
		{1572864, []int{1}, "1.5 MB"},
		{1234567, nil, "1.18 MB"},
	}
	for _, tt := range tests {
		got := FormatBytes(tt.n, tt.decimals...)
		if got != tt.want {
			t.Errorf("FormatBytes(%d, %v) = %q, want %q", tt.n, tt.decimals, got, tt.want)
		}
	}
}

func TestRatioPct(t *testing.T) {
	tests := []struct {
		part, total int64
		want        float64
	}{
		{250, 1000, 25.0},
		{9, 10, 90.0},
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
	}
	for _, tt := range tests {
		if got := ratioPct(tt.part, tt.total); got != tt.want {
			t.Errorf("ratioPct(%d, %d) = %v, want %v", tt.part, tt.total, got, tt.want)
		}
	}
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		in   string
		want TimeRange
	}{
		{"24", Range24h},
		{"7", Range7d},
		{"30", Range30d},
		{"", Range24h},
		{"90", Range24h},
		{"yesterday", Range24h},
	}
	for _, tt := range tests {
		if got := NormalizeRange(tt.in); got != tt.want {
			t.Errorf("NormalizeRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
