package ledger

import (
	"fmt"
	"strings"
)

// Platform identifies the ride platform an earning was paid through.
type Platform string

const (
	PlatformUber    Platform = "uber"
	PlatformBolt    Platform = "bolt"
	PlatformFreeNow Platform = "freenow"
	PlatformHeetch  Platform = "heetch"
	PlatformDirect  Platform = "direct"
)

// Platforms lists every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformUber, PlatformBolt, PlatformFreeNow, PlatformHeetch, PlatformDirect}
}

// ParsePlatform normalizes and validates a platform identifier.
func ParsePlatform(value string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(value)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, value)
	}
	return p, nil
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformUber, PlatformBolt, PlatformFreeNow, PlatformHeetch, PlatformDirect:
		return true
	default:
		return false
	}
}

// DisplayName returns the label used on reports.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformUber:
		return "Uber"
	case PlatformBolt:
		return "Bolt"
	case PlatformFreeNow:
		return "FREENOW"
	case PlatformHeetch:
		return "Heetch"
	case PlatformDirect:
		return "Direct"
	default:
		return string(p)
	}
}
