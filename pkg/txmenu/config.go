package txmenu

import (
	"sync"
	"time"
)

// Rate is a radio packet rate.
type Rate struct {
	Hz          int
	Sensitivity int
	Interval    time.Duration
}

// Rates are ordered from the fastest.
var Rates = []Rate{
	{Hz: 500, Sensitivity: -105, Interval: 2000 * time.Microsecond},
	{Hz: 250, Sensitivity: -108, Interval: 4000 * time.Microsecond},
	{Hz: 150, Sensitivity: -112, Interval: 6666 * time.Microsecond},
	{Hz: 50, Sensitivity: -117, Interval: 20000 * time.Microsecond},
}

// TlmRatios maps the telemetry ratio index to one telemetry packet every
// n packets, 0 for no telemetry.
var TlmRatios = []int{0, 128, 64, 32, 16, 8, 4, 2}

// PowerLevel indexes PowerLevels.
type PowerLevel byte

// Power levels.
const (
	Power10mW PowerLevel = iota
	Power25mW
	Power50mW
	Power100mW
	Power250mW
	Power500mW
	Power1000mW
	Power2000mW
)

// PowerLevels are the power options in mW.
var PowerLevels = []string{"10", "25", "50", "100", "250", "500", "1000", "2000"}

// Switch modes.
const (
	SwitchHybrid byte = 1
	SwitchWide   byte = 2
)

// Settings are the values edited through the menu.
type Settings struct {
	Rate          byte
	TlmRatio      byte
	SwitchMode    byte
	ModelMatch    bool
	Power         PowerLevel
	DynamicPower  bool
	BoostChannel  byte
	VtxBand       byte
	VtxChannel    byte
	VtxPower      byte
	VtxPitmode    byte
	DvrAux        byte
	DvrStartDelay byte
	DvrStopDelay  byte
}

// DefaultSettings are used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Rate:       1,
		TlmRatio:   2,
		SwitchMode: SwitchHybrid,
		Power:      Power50mW,
	}
}

// Config is the settings store behind the menu.
type Config interface {
	Settings() Settings
	Update(fn func(*Settings))
}

// MemoryConfig keeps Settings in memory. It is safe for concurrent use.
type MemoryConfig struct {
	// OnChange is called after each Update with the new settings.
	OnChange func(Settings)

	lock     sync.RWMutex
	settings Settings
}

// NewMemoryConfig creates a MemoryConfig holding s.
func NewMemoryConfig(s Settings) *MemoryConfig {
	return &MemoryConfig{settings: s}
}

// Settings implements Config.
func (c *MemoryConfig) Settings() Settings {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.settings
}

// Update implements Config.
func (c *MemoryConfig) Update(fn func(*Settings)) {
	c.lock.Lock()
	fn(&c.settings)
	s := c.settings
	c.lock.Unlock()
	if c.OnChange != nil {
		c.OnChange(s)
	}
}
