package cloudflare

import (
	"math"
	"strconv"
	"time"
)

// Snapshot is one normalized analytics result for a single time range.
// Immutable once produced by the client.
type Snapshot struct {
	UniqueVisitors       int64     `json:"unique_visitors"`
	TotalRequests        int64     `json:"total_requests"`
	PageViews            int64     `json:"page_views"`
	BandwidthBytes       int64     `json:"bandwidth_bytes"`
	CachedBandwidthBytes int64     `json:"cached_bandwidth_bytes"`
	CacheRatioPct        float64   `json:"cache_ratio_pct"`
	ThreatsBlocked       int64     `json:"threats_blocked"`
	HTTPSPct             float64   `json:"https_pct"`
	Bandwidth            string    `json:"bandwidth"`
	CachedBandwidth      string    `json:"cached_bandwidth"`
	FetchedAt            time.Time `json:"fetched_at"`
}

// ratioPct returns part/total as a percentage rounded to one decimal,
// 0 when total is zero.
func ratioPct(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n in binary-1024 units with the given number of
// decimal places (default 2). Trailing zeros are trimmed, so 1024 bytes
// is "1 KB" and 1536 bytes is "1.5 KB".
func FormatBytes(n int64, decimals ...int) string {
	places := 2
	if len(decimals) > 0 && decimals[0] >= 0 {
		places = decimals[0]
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	factor := math.Pow(10, float64(places))
	value = math.Round(value*factor) / factor
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + byteUnits[unit]
}
