// Package fingerprint derives a pseudo-stable visitor identifier from browser
// attributes and captures campaign attribution from the landing request.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Length is the number of hex characters kept from the attribute digest.
const Length = 16

// ClientHints are the attributes the browser reports on session start.
type ClientHints struct {
	UserAgent           string `json:"userAgent"`
	AcceptLanguage      string `json:"acceptLanguage"`
	Platform            string `json:"platform"`
	Screen              string `json:"screen"`
	Timezone            string `json:"timezone"`
	ColorDepth          int    `json:"colorDepth"`
	HardwareConcurrency int    `json:"hardwareConcurrency"`
}

type Attribution struct {
	UtmSource   string `json:"utmSource"`
	UtmMedium   string `json:"utmMedium"`
	UtmCampaign string `json:"utmCampaign"`
	Referrer    string `json:"referrer"`
	UserAgent   string `json:"userAgent"`
}

// Visit is one page load: the device fingerprint, a fresh session identifier
// minted from it, and where the visitor came from.
type Visit struct {
	Fingerprint string      `json:"fingerprint"`
	SessionId   string      `json:"sessionId"`
	Attribution Attribution `json:"attribution"`
}

// Compute hashes the canonical attribute list. Field order is part of the format.
func Compute(h ClientHints) string {
	canonical := strings.Join([]string{
		strings.TrimSpace(h.UserAgent),
		strings.TrimSpace(h.AcceptLanguage),
		strings.TrimSpace(h.Platform),
		strings.TrimSpace(h.Screen),
		strings.TrimSpace(h.Timezone),
		strconv.Itoa(h.ColorDepth),
		strconv.Itoa(h.HardwareConcurrency),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:Length]
}

// NewSessionID returns "<fingerprint>_<unix ms>".
func NewSessionID(fingerprint string, now time.Time) string {
	return fmt.Sprintf("%s_%d", fingerprint, now.UnixMilli())
}

// Prefix returns the fingerprint part of a session identifier, or "" when the
// identifier was not minted by NewSessionID.
func Prefix(sessionID string) string {
	i := strings.LastIndex(sessionID, "_")
	if i <= 0 {
		return ""
	}
	if _, err := strconv.ParseInt(sessionID[i+1:], 10, 64); err != nil {
		return ""
	}
	return sessionID[:i]
}

// ParseAttribution reads utm_* from the landing URL, falling back to the
// referrer's query string for each missing key.
func ParseAttribution(landingURL, referrer, userAgent string) Attribution {
	landing := queryOf(landingURL)
	ref := queryOf(referrer)

	pick := func(key string) string {
		if v := strings.TrimSpace(landing.Get(key)); v != "" {
			return v
		}
		return strings.TrimSpace(ref.Get(key))
	}

	return Attribution{
		UtmSource:   pick("utm_source"),
		UtmMedium:   pick("utm_medium"),
		UtmCampaign: pick("utm_campaign"),
		Referrer:    strings.TrimSpace(referrer),
		UserAgent:   strings.TrimSpace(userAgent),
	}
}

func queryOf(raw string) url.Values {
	if raw == "" {
		return url.Values{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// Collect builds the Visit for a page load.
func Collect(h ClientHints, landingURL, referrer string, now time.Time) Visit {
	fp := Compute(h)
	return Visit{
		Fingerprint: fp,
		SessionId:   NewSessionID(fp, now),
		Attribution: ParseAttribution(landingURL, referrer, h.UserAgent),
	}
}
