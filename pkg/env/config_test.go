package env

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsflink/pkg/txmenu"
)

func TestParsePowerLevel(t *testing.T) {
	testCases := []struct {
		in    string
		level txmenu.PowerLevel
		err   bool
	}{
		{in: "10", level: txmenu.Power10mW},
		{in: "250mW", level: txmenu.Power250mW},
		{in: " 1000 ", level: txmenu.Power1000mW},
		{in: "2000MW", level: txmenu.Power2000mW},
		{in: "30", err: true},
		{in: "max", err: true},
	}
	for _, tc := range testCases {
		level, err := ParsePowerLevel(tc.in)
		if tc.err {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.level, level, tc.in)
	}
}

func TestFeatures(t *testing.T) {
	conf := NewConfig()
	conf.MinPower, conf.MaxPower, conf.Backpack = "25", "500", true
	f, err := conf.Features()
	require.NoError(t, err)
	require.Equal(t, txmenu.Features{Backpack: true, MinPower: txmenu.Power25mW, MaxPower: txmenu.Power500mW}, f)

	conf.MinPower = "1000"
	_, err = conf.Features()
	require.Error(t, err)
}

func TestFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-d", "/dev/ttyACM1", "--baud", "115200,921600", "--id", "tx1", "--half-duplex"}))
	conf := NewConfig()
	require.Equal(t, "/dev/ttyACM1", conf.Device)
	require.Equal(t, []int{115200, 921600}, conf.BaudRates)
	require.True(t, conf.HalfDuplex)
	require.Equal(t, "tx1", conf.LinkID())

	conf.BaudRates[0] = 1
	require.Equal(t, 115200, Default().BaudRates[0])
}
