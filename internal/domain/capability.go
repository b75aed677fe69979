package domain

import "strings"

// Capability is a category of upstream work that is rate-limited
// independently of the others. The set is closed.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityImages Capability = "images"
	CapabilityVideos Capability = "videos"
)

func Capabilities() []Capability {
	return []Capability{CapabilityText, CapabilityImages, CapabilityVideos}
}

func (c Capability) Valid() bool {
	switch c {
	case CapabilityText, CapabilityImages, CapabilityVideos:
		return true
	default:
		return false
	}
}

func (c Capability) Label() string {
	switch c {
	case CapabilityText:
		return "chat"
	case CapabilityImages:
		return "image generation"
	case CapabilityVideos:
		return "video generation"
	default:
		return string(c)
	}
}

func ParseCapability(raw string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", false
	}

	return c, true
}
