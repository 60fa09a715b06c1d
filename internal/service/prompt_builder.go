package service

import (
	"fmt"
	"strings"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/pkg/funnel/session"
)

// BuildCustomPrompt assembles the clinic context substituted into the
// secretary's system instruction. Missing pieces are left out rather than
// filled with placeholders.
func BuildCustomPrompt(profile session.Profile, insights *entity.AiInsights) string {
	var b strings.Builder

	clinic := ""
	location := ""
	var procedures, hooks []string
	if insights != nil {
		clinic = strings.TrimSpace(insights.Name)
		location = strings.TrimSpace(insights.Location)
		procedures = nonEmpty(insights.Procedures)
		hooks = nonEmpty(insights.RapportHooks)
	}
	if clinic == "" {
		clinic = strings.TrimSpace(profile.FullName)
	}

	if clinic != "" {
		fmt.Fprintf(&b, "Clínica: %s.\n", clinic)
	}
	if location != "" {
		fmt.Fprintf(&b, "Localização: %s.\n", location)
	}
	if s := strings.TrimSpace(profile.Specialty); s != "" {
		fmt.Fprintf(&b, "Especialidade: %s.\n", s)
	}
	if profile.FullName != "" && profile.FullName != clinic {
		fmt.Fprintf(&b, "Profissional responsável: %s.\n", profile.FullName)
	}
	if len(procedures) > 0 {
		fmt.Fprintf(&b, "Procedimentos oferecidos: %s.\n", strings.Join(procedures, ", "))
	}
	if len(hooks) > 0 {
		fmt.Fprintf(&b, "Use com naturalidade, quando fizer sentido, estes pontos de conexão: %s.\n", strings.Join(hooks, "; "))
	}
	if profile.InstagramHandle != "" {
		fmt.Fprintf(&b, "Instagram: @%s.\n", profile.InstagramHandle)
	}

	return strings.TrimSpace(b.String())
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
