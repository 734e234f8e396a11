// Package env provides the common configuration of crsflink commands from
// defaults, environment variables and flags.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/robotalks/crsflink/pkg/txmenu"
)

// AppID salts the machine id.
const AppID = "crsflink"

// Config provides common options to set up a link.
type Config struct {
	// Device is the serial device to the handset.
	Device string
	// WebsocketURL connects to a handset simulator instead of Device.
	WebsocketURL string
	// Origin is the websocket origin.
	Origin string
	// MqttURL enables the MQTT telemetry, e.g.
	// mqtt://localhost:1883/crsf/
	MqttURL string
	// StatsDB is the SQLite file of the watchdog history.
	StatsDB string
	// ID identifies this link on MQTT.
	ID string

	BaudRates    []int
	HalfDuplex   bool
	Autotune     bool
	ForwardPings bool
	Backpack     bool
	MinPower     string
	MaxPower     string
}

var defaultConfig = Config{
	Device:    "/dev/ttyUSB0",
	Origin:    "http://localhost/",
	BaudRates: []int{400000, 115200, 5250000, 3750000, 1870000, 921600},
	Autotune:  true,
	MinPower:  "10",
	MaxPower:  "2000",
}

func init() {
	if val := os.Getenv("CRSF_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("CRSF_WS_URL"); val != "" {
		defaultConfig.WebsocketURL = val
	}
	if val := os.Getenv("CRSF_MQTT_URL"); val != "" {
		defaultConfig.MqttURL = val
	}
	if val := os.Getenv("CRSF_STATS_DB"); val != "" {
		defaultConfig.StatsDB = val
	}
	if val := os.Getenv("CRSF_ID"); val != "" {
		defaultConfig.ID = val
	}
}

// SetupFlags sets up command line flags on fs.
func SetupFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&defaultConfig.Device, "device", "d", defaultConfig.Device, "Serial device to the handset.")
	fs.StringVar(&defaultConfig.WebsocketURL, "ws", defaultConfig.WebsocketURL, "Websocket URL of a handset simulator, replaces the serial device.")
	fs.StringVar(&defaultConfig.Origin, "ws-origin", defaultConfig.Origin, "Websocket origin.")
	fs.StringVar(&defaultConfig.MqttURL, "mqtt", defaultConfig.MqttURL, "MQTT broker URL for telemetry.")
	fs.StringVar(&defaultConfig.StatsDB, "stats-db", defaultConfig.StatsDB, "SQLite file recording the watchdog history.")
	fs.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Link ID on MQTT, defaults to the machine ID.")
	fs.IntSliceVar(&defaultConfig.BaudRates, "baud", defaultConfig.BaudRates, "Baud rates tried in order.")
	fs.BoolVar(&defaultConfig.HalfDuplex, "half-duplex", defaultConfig.HalfDuplex, "Single wire half duplex line.")
	fs.BoolVar(&defaultConfig.Autotune, "autotune", defaultConfig.Autotune, "Adapt the sync margin to the handset.")
	fs.BoolVar(&defaultConfig.ForwardPings, "forward-pings", defaultConfig.ForwardPings, "Relay device pings to the receiver.")
	fs.BoolVar(&defaultConfig.Backpack, "backpack", defaultConfig.Backpack, "Show the backpack menu.")
	fs.StringVar(&defaultConfig.MinPower, "min-power", defaultConfig.MinPower, "Lowest power level in mW.")
	fs.StringVar(&defaultConfig.MaxPower, "max-power", defaultConfig.MaxPower, "Highest power level in mW.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.BaudRates = append([]int(nil), defaultConfig.BaudRates...)
	return &conf
}

// LinkID returns ID, or the machine id when not set. Without a machine id
// a random id is used.
func (c *Config) LinkID() string {
	if c.ID != "" {
		return c.ID
	}
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return uuid.New().String()
	}
	return id
}

// Features returns the menu features.
func (c *Config) Features() (txmenu.Features, error) {
	min, err := ParsePowerLevel(c.MinPower)
	if err != nil {
		return txmenu.Features{}, err
	}
	max, err := ParsePowerLevel(c.MaxPower)
	if err != nil {
		return txmenu.Features{}, err
	}
	if min > max {
		return txmenu.Features{}, fmt.Errorf("min power %smW above max power %smW", c.MinPower, c.MaxPower)
	}
	return txmenu.Features{Backpack: c.Backpack, MinPower: min, MaxPower: max}, nil
}

// ParsePowerLevel parses a power in mW, with or without unit.
func ParsePowerLevel(s string) (txmenu.PowerLevel, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "mw")
	if _, err := strconv.Atoi(s); err != nil {
		return 0, fmt.Errorf("invalid power %q", s)
	}
	for i, level := range txmenu.PowerLevels {
		if level == s {
			return txmenu.PowerLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported power %smW", s)
}
