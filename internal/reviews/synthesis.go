package reviews

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	maxStrengths       = 5
	maxConcerns        = 5
	maxRecommendations = 7
)

// SynthesisConfig carries the scoring weights and the veto score cap.
// Zero-value fields fall back to the defaults.
type SynthesisConfig struct {
	InnovationWeight float64
	EthicsWeight     float64
	SecurityWeight   float64
	VetoCap          float64
}

// DefaultSynthesisConfig returns the standard weighting. Ethics carries the
// largest share, and a triggered veto caps the overall score at 3.0.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		InnovationWeight: 0.30,
		EthicsWeight:     0.40,
		SecurityWeight:   0.30,
		VetoCap:          3.0,
	}
}

func (c SynthesisConfig) withDefaults() SynthesisConfig {
	d := DefaultSynthesisConfig()
	if c.InnovationWeight <= 0 {
		c.InnovationWeight = d.InnovationWeight
	}
	if c.EthicsWeight <= 0 {
		c.EthicsWeight = d.EthicsWeight
	}
	if c.SecurityWeight <= 0 {
		c.SecurityWeight = d.SecurityWeight
	}
	if c.VetoCap <= 0 {
		c.VetoCap = d.VetoCap
	}
	return c
}

// Synthesize combines the three persona analyses into one verdict. Pure
// function: identical inputs always yield identical verdicts.
func Synthesize(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis, cfg SynthesisConfig) Verdict {
	cfg = cfg.withDefaults()

	overall := overallScore(x, z, s, cfg)
	recommendation := determineRecommendation(overall, z, s)

	verdict := Verdict{
		Summary:         buildSummary(x, z, s, recommendation),
		InnovationScore: x.InnovationScore,
		EthicsScore:     z.EthicsScore,
		SecurityScore:   s.SecurityScore,
		OverallScore:    overall,
		Strengths:       synthesizeStrengths(x, z, s),
		Concerns:        synthesizeConcerns(x, z, s),
		Recommendations: synthesizeRecommendations(x, z, s),
		Recommendation:  recommendation,
		Confidence:      round2((x.Confidence + z.Confidence + s.Confidence) / 3),
		VetoTriggered:   z.VetoTriggered,
	}
	if z.VetoTriggered && len(z.EthicalConcerns) > 0 {
		verdict.VetoReason = z.EthicalConcerns[0]
	}
	return verdict
}

// overallScore is the weighted average of the component scores. The
// innovation component is the mean of the persona's two scores. A veto caps
// the weighted value before rounding.
func overallScore(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis, cfg SynthesisConfig) float64 {
	xScore := (x.InnovationScore + x.StrategicValue) / 2
	weighted := xScore*cfg.InnovationWeight + z.EthicsScore*cfg.EthicsWeight + s.SecurityScore*cfg.SecurityWeight
	if z.VetoTriggered {
		weighted = math.Min(weighted, cfg.VetoCap)
	}
	return round1(weighted)
}

// determineRecommendation maps (overall, veto, security) onto the closed
// recommendation set. A veto always rejects; a low security score forces
// revision regardless of the overall score.
func determineRecommendation(overall float64, z EthicsAnalysis, s SecurityAnalysis) string {
	if z.VetoTriggered {
		return RecommendReject
	}
	if s.SecurityScore < 4.0 {
		return RecommendRevise
	}
	switch {
	case overall >= 7.5:
		return RecommendProceed
	case overall >= 5.5:
		return RecommendWithCaution
	case overall >= 4.0:
		return RecommendRevise
	default:
		return RecommendReject
	}
}

func synthesizeStrengths(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis) []string {
	strengths := []string{}
	if x.InnovationScore >= 7.0 {
		strengths = append(strengths, fmt.Sprintf("High innovation potential (score: %s/10)", formatScore(x.InnovationScore)))
	}
	if x.StrategicValue >= 7.0 {
		strengths = append(strengths, fmt.Sprintf("Strong strategic value (score: %s/10)", formatScore(x.StrategicValue)))
	}
	for _, opp := range capList(x.Opportunities, 2) {
		strengths = append(strengths, "Opportunity: "+opp)
	}
	if z.CharterCompliance {
		strengths = append(strengths, "Ethics charter compliant")
	}
	if z.EthicsScore >= 7.0 {
		strengths = append(strengths, fmt.Sprintf("Strong ethical foundation (score: %s/10)", formatScore(z.EthicsScore)))
	}
	if s.SecurityScore >= 7.0 {
		strengths = append(strengths, fmt.Sprintf("Solid security posture (score: %s/10)", formatScore(s.SecurityScore)))
	}
	return capList(strengths, maxStrengths)
}

func synthesizeConcerns(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis) []string {
	concerns := []string{}
	for _, risk := range capList(x.Risks, 2) {
		concerns = append(concerns, "Risk: "+risk)
	}
	for _, concern := range capList(z.EthicalConcerns, 2) {
		concerns = append(concerns, "Ethical: "+concern)
	}
	if z.VetoTriggered {
		concerns = append([]string{"VETO TRIGGERED: Ethical red line crossed"}, concerns...)
	}
	for _, vuln := range capList(s.Vulnerabilities, 2) {
		concerns = append(concerns, "Security: "+vuln)
	}
	return capList(concerns, maxConcerns)
}

func synthesizeRecommendations(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis) []string {
	recommendations := []string{
		InnovationAgentName + ": " + x.Recommendation,
		EthicsAgentName + ": " + z.Recommendation,
		SecurityAgentName + ": " + s.Recommendation,
	}
	for _, m := range capList(z.MitigationMeasures, 2) {
		recommendations = append(recommendations, "Mitigation: "+m)
	}
	for _, r := range capList(s.SecurityRecommendations, 2) {
		recommendations = append(recommendations, "Security: "+r)
	}
	return capList(recommendations, maxRecommendations)
}

func buildSummary(x InnovationAnalysis, z EthicsAnalysis, s SecurityAnalysis, recommendation string) string {
	var parts []string
	if z.VetoTriggered {
		parts = append(parts, "VETO TRIGGERED by Ethics Guardian.")
		reason := "Ethical red line crossed"
		if len(z.EthicalConcerns) > 0 {
			reason = z.EthicalConcerns[0]
		}
		parts = append(parts, "Reason: "+reason)
	} else {
		parts = append(parts, "Overall assessment: "+strings.ToUpper(recommendation))
	}
	parts = append(parts,
		fmt.Sprintf("Innovation: %s/10", formatScore(x.InnovationScore)),
		fmt.Sprintf("Ethics: %s/10", formatScore(z.EthicsScore)),
		fmt.Sprintf("Security: %s/10", formatScore(s.SecurityScore)),
	)
	return strings.Join(parts, " | ")
}

func capList(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// formatScore renders a score with at least one decimal place, so integral
// values print as "8.0" rather than "8".
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
