package shared

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder images used when a service reports no artwork.
const (
	JellyfinPlaceholder = "/jellyfin-logo.svg"
	YouTubePlaceholder  = "/youtube-music-logo.svg"
)

// TicksPerSecond is the number of 100-nanosecond ticks in one second.
const TicksPerSecond = 10_000_000

var (
	jellyfinIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	isoDuration       = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?)?$`)
)

// Thumbnail is one candidate image of a media item.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TicksToSeconds floors a 100-nanosecond tick count to whole seconds.
func TicksToSeconds(ticks int64) int {
	if ticks <= 0 {
		return 0
	}
	return int(ticks / TicksPerSecond)
}

// ParseTimestamp parses colon-delimited text such as "3:45" or "1:02:03" into seconds.
//
// Fields are read right to left as seconds, minutes, hours and days.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty timestamp", ErrInvalidInput)
	}

	multipliers := []int{1, 60, 3600, 86400}
	parts := strings.Split(s, ":")
	if len(parts) > len(multipliers) {
		return 0, fmt.Errorf("%w: timestamp %q has too many fields", ErrInvalidInput, s)
	}

	total := 0
	for i := range parts {
		field := parts[len(parts)-1-i]
		if !allDigits(field) {
			return 0, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, s)
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, s)
		}
		total += n * multipliers[i]
	}
	return total, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseISODuration parses the ISO-8601 durations returned by the YouTube Data API, e.g. "PT3M45S".
//
// Fractional seconds are dropped.
func ParseISODuration(s string) (int, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, s)
	}

	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, s)
		}
		total += n * mult
	}
	return total, nil
}

var durationWords = map[string]int{
	"second": 1, "seconds": 1,
	"minute": 60, "minutes": 60,
	"hour": 3600, "hours": 3600,
	"day": 86400, "days": 86400,
}

// ParseDurationText parses header text like "1 hour, 5 minutes" or "23 minutes" into seconds.
//
// Unknown fragments are ignored; text with no recognised units yields zero.
func ParseDurationText(s string) int {
	fields := strings.Fields(strings.NewReplacer(",", " ", "+", " ").Replace(strings.ToLower(s)))
	total := 0
	for i := 0; i+1 < len(fields); i++ {
		mult, ok := durationWords[fields[i+1]]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		total += n * mult
		i++
	}
	return total
}

// FormatDuration renders seconds as a colon timestamp, "3:45" or "1:02:03".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, sec := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// BestThumbnail returns the normalized url of the largest candidate by area, or fallback when there are none.
func BestThumbnail(candidates []Thumbnail, fallback string) string {
	best := -1
	bestArea := -1
	for i, c := range candidates {
		if c.URL == "" {
			continue
		}
		if area := c.Width * c.Height; area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return fallback
	}
	return NormalizeThumbnailURL(candidates[best].URL)
}

// NormalizeThumbnailURL removes service-specific scaling so the caller can re-parameterize the image.
//
// Google image CDNs encode size after an "=" (e.g. "=w120-h120-l90-rj"); everything from it is cut.
// Video thumbnails carry size in the query string, which is dropped.
func NormalizeThumbnailURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "googleusercontent.com"), strings.HasSuffix(host, "ggpht.com"):
		if i := strings.IndexByte(raw, '='); i >= 0 {
			return raw[:i]
		}
	case strings.HasSuffix(host, "ytimg.com"):
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	return raw
}

// ValidJellyfinID reports whether id is a Jellyfin item id: 32 lowercase hex characters.
func ValidJellyfinID(id string) bool {
	return jellyfinIDPattern.MatchString(id)
}

// ValidVideoID reports whether id has the shape of a YouTube video id.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}
