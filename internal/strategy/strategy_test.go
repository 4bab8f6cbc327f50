package strategy

import (
	"testing"

	"pilotfish/internal/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForID(t *testing.T) {
	s, err := ForID("rsi-ma")
	require.NoError(t, err)
	assert.Equal(t, "rsi-ma", s.ID())

	_, err = ForID("nope")
	assert.Error(t, err)
}

func TestRSIMA_Evaluate(t *testing.T) {
	s, err := ForID("rsi-ma")
	require.NoError(t, err)

	cases := []struct {
		name string
		ind  exchange.Indicators
		side exchange.Side
		ok   bool
	}{
		{
			name: "oversold dip in uptrend buys",
			ind:  exchange.Indicators{Price: 105, RSI: 25, MA200: 100, EMA10: 104},
			side: exchange.SideBuy,
			ok:   true,
		},
		{
			name: "oversold below MA200 stays flat",
			ind:  exchange.Indicators{Price: 95, RSI: 25, MA200: 100, EMA10: 96},
			ok:   false,
		},
		{
			name: "overbought under EMA10 sells",
			ind:  exchange.Indicators{Price: 103, RSI: 75, MA200: 100, EMA10: 104},
			side: exchange.SideSell,
			ok:   true,
		},
		{
			name: "overbought with momentum intact stays flat",
			ind:  exchange.Indicators{Price: 110, RSI: 75, MA200: 100, EMA10: 108},
			ok:   false,
		},
		{
			name: "neutral rsi stays flat",
			ind:  exchange.Indicators{Price: 105, RSI: 50, MA200: 100, EMA10: 104},
			ok:   false,
		},
		{
			name: "missing history stays flat",
			ind:  exchange.Indicators{Price: 105, RSI: 25},
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := s.Evaluate("BTCUSDT", tc.ind)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.side, d.Side)
				assert.Equal(t, tc.ind.Price, d.Price)
				assert.Equal(t, "BTCUSDT", d.Symbol)
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}
