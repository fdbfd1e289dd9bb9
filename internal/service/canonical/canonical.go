package canonical

import (
	"regexp"
	"strings"
)

const (
	// OwnCode marks employees who travel by their own vehicle.
	OwnCode = "OWN"
	// UnknownCode is used by reports for attendance with no resolvable bus.
	UnknownCode = "UNKN"

	maxCodeLen = 6
	// MaxVanCodeLen matches the vans.van_code column.
	MaxVanCodeLen = 20
)

var (
	routeSpaced = regexp.MustCompile(`(?i)route\s+([a-z0-9]+)(?:_|\s|$)`)
	routeTagged = regexp.MustCompile(`(?i)route[-:]\s*([a-z0-9]+)`)
	nonAlnum    = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// BusCode derives the bus code from a free-text route value. The first rule
// that yields a 1-6 character code wins:
//
//	"... own ..."          -> OWN
//	"Route C1_P1_AB"       -> C1
//	"Route-A07", "Route: A07" -> A07
//	"a-07"                 -> A07 (alphanumerics only)
func BusCode(route string) (string, bool) {
	text := strings.TrimSpace(route)
	if text == "" {
		return "", false
	}

	if strings.Contains(strings.ToLower(text), "own") {
		return OwnCode, true
	}

	for _, re := range []*regexp.Regexp{routeSpaced, routeTagged} {
		if m := re.FindStringSubmatch(text); m != nil && validLen(m[1]) {
			return strings.ToUpper(m[1]), true
		}
	}

	stripped := nonAlnum.ReplaceAllString(text, "")
	if validLen(stripped) {
		return strings.ToUpper(stripped), true
	}

	return "", false
}

// VanCode derives the van code from a free-text transport value. A code
// equal to busCode is treated as an echo of the bus and dropped, as is one
// longer than MaxVanCodeLen.
func VanCode(transport string, busCode string) (string, bool) {
	if strings.Contains(strings.ToLower(transport), "own") {
		return "", false
	}

	code := strings.ToUpper(nonAlnum.ReplaceAllString(transport, ""))
	if code == "" || code == busCode || len(code) > MaxVanCodeLen {
		return "", false
	}
	return code, true
}

// IsSynthetic reports codes that do not stand for a physical bus.
func IsSynthetic(busID string) bool {
	id := strings.ToUpper(strings.TrimSpace(busID))
	return id == OwnCode || id == UnknownCode
}

func validLen(code string) bool {
	return len(code) >= 1 && len(code) <= maxCodeLen
}
