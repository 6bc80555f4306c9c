package browser

import (
	"fmt"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// Supported drivers
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// New returns the launcher for the named driver
func New(driver string, s Settings) (dom.Launcher, error) {
	switch driver {
	case "", DriverChromedp:
		return NewChromedp(s), nil
	case DriverRod:
		return NewRod(s), nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", driver)
	}
}
