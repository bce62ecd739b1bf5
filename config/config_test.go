package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COMMISSION_LEVELS", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[int]float64{1: 10, 2: 5, 3: 2}, cfg.Commission.Levels)
	assert.Equal(t, int64(10000), cfg.Withdrawal.MinCents)
	assert.Equal(t, int64(5000000), cfg.Withdrawal.MaxCents)
	assert.Equal(t, 30, cfg.Refund.WindowDays)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Orders.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COMMISSION_LEVELS", `{"1":12,"2":4}`)
	t.Setenv("WITHDRAWAL_MIN", "200")
	t.Setenv("REFUND_WINDOW_DAYS", "14")
	t.Setenv("GATEWAY_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: 12, 2: 4}, cfg.Commission.Levels)
	assert.Equal(t, int64(20000), cfg.Withdrawal.MinCents)
	assert.Equal(t, 14, cfg.Refund.WindowDays)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
}

func TestParseCommissionLevels(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: `{"1":10,"2":5,"3":2}`},
		{name: "zero level allowed", raw: `{"1":0}`},
		{name: "above fifty", raw: `{"1":51}`, wantErr: true},
		{name: "negative", raw: `{"2":-1}`, wantErr: true},
		{name: "level four", raw: `{"4":1}`, wantErr: true},
		{name: "not a number key", raw: `{"one":1}`, wantErr: true},
		{name: "broken json", raw: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommissionLevels(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_RejectsInvalidLevels(t *testing.T) {
	t.Setenv("COMMISSION_LEVELS", `{"1":80}`)
	_, err := Load()
	assert.Error(t, err)
}
