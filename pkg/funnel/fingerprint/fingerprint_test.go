package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_StableAndSensitive(t *testing.T) {
	hints := ClientHints{
		UserAgent:           "Mozilla/5.0 (iPhone)",
		AcceptLanguage:      "pt-BR",
		Platform:            "iPhone",
		Screen:              "390x844",
		Timezone:            "America/Sao_Paulo",
		ColorDepth:          24,
		HardwareConcurrency: 6,
	}

	first := Compute(hints)
	assert.Len(t, first, Length)
	assert.Equal(t, first, Compute(hints))

	hints.Screen = "428x926"
	assert.NotEqual(t, first, Compute(hints))
}

func TestNewSessionID_PrefixRoundTrip(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	id := NewSessionID("abcdef0123456789", now)

	assert.Equal(t, "abcdef0123456789_1718000000123", id)
	assert.Equal(t, "abcdef0123456789", Prefix(id))
}

func TestPrefix_Rejects(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "no separator", id: "abcdef"},
		{name: "leading separator", id: "_123"},
		{name: "non numeric suffix", id: "abc_def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "", Prefix(tt.id))
		})
	}
}

func TestParseAttribution(t *testing.T) {
	tests := []struct {
		name     string
		landing  string
		referrer string
		want     Attribution
	}{
		{
			name:    "landing query",
			landing: "https://demo.example.com/?utm_source=instagram&utm_medium=stories&utm_campaign=botox",
			want: Attribution{
				UtmSource:   "instagram",
				UtmMedium:   "stories",
				UtmCampaign: "botox",
				UserAgent:   "ua",
			},
		},
		{
			name:     "referrer fallback per key",
			landing:  "https://demo.example.com/?utm_source=facebook",
			referrer: "https://l.facebook.com/?utm_medium=cpc&utm_campaign=launch",
			want: Attribution{
				UtmSource:   "facebook",
				UtmMedium:   "cpc",
				UtmCampaign: "launch",
				Referrer:    "https://l.facebook.com/?utm_medium=cpc&utm_campaign=launch",
				UserAgent:   "ua",
			},
		},
		{
			name:    "direct traffic",
			landing: "https://demo.example.com/",
			want:    Attribution{UserAgent: "ua"},
		},
		{
			name:    "unparseable landing",
			landing: "://bad",
			want:    Attribution{UserAgent: "ua"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAttribution(tt.landing, tt.referrer, "ua"))
		})
	}
}

func TestCollect(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	visit := Collect(ClientHints{UserAgent: "ua"}, "https://x.test/?utm_source=google", "", now)

	require.Len(t, visit.Fingerprint, Length)
	assert.Equal(t, visit.Fingerprint, Prefix(visit.SessionId))
	assert.Equal(t, "google", visit.Attribution.UtmSource)
}
