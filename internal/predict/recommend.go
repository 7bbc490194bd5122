package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/wardsignal/hospital-stress-backend/internal/ai"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// recommendationCount is a contract value: every recommendation set has
// exactly this many items, priorities 1..recommendationCount each used once.
const recommendationCount = 3

// rankingCostFloor keeps the impact-to-cost ratio finite for free or
// near-free recommendations. Only the ranking key is floored — the stored
// CostEstimate is never rewritten.
const rankingCostFloor = 1000.0

// RecommendationEngine produces ranked action recommendations from current
// stress levels. The AI backend supplies candidates at a creative
// temperature; a fixed rule table covers backend failure, and ranking by
// impact-to-cost ratio is applied regardless of source — AI-provided
// priorities are never trusted as final.
type RecommendationEngine struct {
	gen    ai.Generator
	logger *slog.Logger
}

// NewRecommendationEngine constructs a RecommendationEngine. gen may be nil,
// in which case every call takes the deterministic fallback path.
func NewRecommendationEngine(gen ai.Generator, logger *slog.Logger) *RecommendationEngine {
	return &RecommendationEngine{gen: gen, logger: logger}
}

// Recommend returns exactly three recommendations for the given stress
// levels, ranked so that priority 1 has the best impact-to-cost ratio.
// history provides narrative context for the prompt; it may be empty.
func (e *RecommendationEngine) Recommend(ctx context.Context, bedStress, staffRisk float64, history []model.CapacityRecord) []model.Recommendation {
	recs, err := e.aiRecommendations(ctx, bedStress, staffRisk, history)
	if err != nil {
		e.logger.Warn("recommend: backend degraded, using rule-table fallback", "error", err)
		recs = fallbackRecommendations(bedStress, staffRisk)
	}

	recs = ensureThree(recs, bedStress, staffRisk)
	return rankByImpactCost(recs)
}

// recJSON is the per-recommendation shape the model is prompted to return.
// Pointer fields distinguish absent from zero so partial responses degrade
// to sensible defaults instead of nonsense.
type recJSON struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	Rationale          *string  `json:"rationale"`
	CostEstimate       *float64 `json:"cost_estimate"`
	ImpactScore        *float64 `json:"impact_score"`
	Priority           *int     `json:"priority"`
	ImplementationTime *string  `json:"implementation_time"`
}

func (e *RecommendationEngine) aiRecommendations(ctx context.Context, bedStress, staffRisk float64, history []model.CapacityRecord) ([]model.Recommendation, error) {
	if e.gen == nil {
		return nil, fmt.Errorf("recommend: no generator configured")
	}

	prompt := buildRecommendationPrompt(bedStress, staffRisk, history)

	raw, err := e.gen.Generate(ctx, ai.Request{
		Prompt:      prompt,
		Temperature: 0.7, // creativity favoured for recommendations
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: generate: %w", err)
	}

	var parsed []recJSON
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("recommend: parse response: %w (raw: %.200s)", err, raw)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("recommend: backend returned no recommendations")
	}
	if len(parsed) > recommendationCount {
		parsed = parsed[:recommendationCount]
	}

	recs := make([]model.Recommendation, len(parsed))
	for i, p := range parsed {
		recs[i] = model.Recommendation{
			Title:              stringOr(p.Title, fmt.Sprintf("Recommendation %d", i+1)),
			Description:        stringOr(p.Description, "No description provided"),
			Rationale:          stringOr(p.Rationale, "No rationale provided"),
			CostEstimate:       floatOr(p.CostEstimate, 10000),
			ImpactScore:        model.Clamp(floatOr(p.ImpactScore, 50), 0, 100),
			Priority:           intOr(p.Priority, i+1),
			ImplementationTime: stringOr(p.ImplementationTime, "1 week"),
		}
	}
	return recs, nil
}

// buildRecommendationPrompt assembles the chain-of-thought prompt: severity
// tier, 30-day averages, and the occupancy trend.
func buildRecommendationPrompt(bedStress, staffRisk float64, history []model.CapacityRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a hospital operations expert providing actionable recommendations for capacity management.

Current Situation:
- Bed Stress Level: %.1f%% (85%%+ is high risk)
- Staff Risk Level: %.1f%% (75%%+ is critical)

Historical Context:
%s

Using chain-of-thought reasoning, generate exactly 3 prioritized recommendations to address the current situation.

For each recommendation, think through:
1. What is the specific problem this addresses?
2. What is the proposed solution?
3. Why is this solution effective?
4. What will it cost (in dollars)?
5. What impact will it have (0-100 scale)?
6. How long will it take to implement?

Respond ONLY with valid JSON: an array of exactly 3 objects with keys
"title", "description", "rationale", "cost_estimate", "impact_score",
"priority", "implementation_time". No markdown fences, no preamble.

Ensure recommendations are:
- Specific and actionable
- Appropriate for the current stress levels
- Ranked by impact-to-cost ratio (priority 1 = highest ratio)
- Realistic in cost and timeline
`, bedStress, staffRisk, narrativeContext(bedStress, staffRisk, history))

	return sb.String()
}

// narrativeContext renders the severity tier, trailing 30-day averages, and
// trend direction (first half vs second half of the window).
func narrativeContext(bedStress, staffRisk float64, history []model.CapacityRecord) string {
	var lines []string

	switch {
	case bedStress > 85 || staffRisk > 75:
		lines = append(lines, "CRITICAL SITUATION: Immediate action required")
	case bedStress > 70 || staffRisk > 60:
		lines = append(lines, "HIGH STRESS: Proactive measures recommended")
	default:
		lines = append(lines, "MODERATE STRESS: Preventive measures advisable")
	}

	if len(history) == 0 {
		lines = append(lines, "Limited historical data available")
		return strings.Join(lines, "\n")
	}

	recent := history
	if len(recent) > 30 {
		recent = recent[len(recent)-30:]
	}

	avgBeds, avgAdmissions, avgStaff := 0.0, 0.0, 0.0
	overloadCount := 0
	for _, r := range recent {
		avgBeds += float64(r.BedsOccupied)
		avgAdmissions += float64(r.Admissions)
		avgStaff += float64(r.StaffOnDuty)
		if r.OverloadFlag {
			overloadCount++
		}
	}
	n := float64(len(recent))
	lines = append(lines,
		"Recent 30-day averages:",
		fmt.Sprintf("- Average beds occupied: %.1f", avgBeds/n),
		fmt.Sprintf("- Average daily admissions: %.1f", avgAdmissions/n),
		fmt.Sprintf("- Average staff on duty: %.1f", avgStaff/n),
		fmt.Sprintf("- Overload events: %d", overloadCount),
	)

	lines = append(lines, "- Trend: "+OccupancyTrend(recent))

	return strings.Join(lines, "\n")
}

// OccupancyTrend compares first-half vs second-half average bed occupancy of
// the window and reports the direction. Fewer than 4 records is too little
// signal to call a trend.
func OccupancyTrend(records []model.CapacityRecord) string {
	if len(records) < 4 {
		return "Insufficient data for trend analysis"
	}

	half := len(records) / 2
	firstAvg, secondAvg := 0.0, 0.0
	for _, r := range records[:half] {
		firstAvg += float64(r.BedsOccupied)
	}
	firstAvg /= float64(half)
	for _, r := range records[half:] {
		secondAvg += float64(r.BedsOccupied)
	}
	secondAvg /= float64(len(records) - half)

	switch {
	case secondAvg > firstAvg*1.1:
		return "Bed occupancy increasing"
	case secondAvg < firstAvg*0.9:
		return "Bed occupancy decreasing"
	default:
		return "Bed occupancy stable"
	}
}

// fallbackRecommendations is the fixed rule table used when the backend is
// unavailable: one staffing action, one bed-capacity action, and one
// systemic-improvement action, each with a stressed and an unstressed
// variant.
func fallbackRecommendations(bedStress, staffRisk float64) []model.Recommendation {
	var staffing model.Recommendation
	if staffRisk > model.CriticalStaffRisk {
		staffing = model.Recommendation{
			Title:              "Emergency Staff Augmentation",
			Description:        "Immediately call in additional nursing staff and activate on-call physicians to handle increased patient load",
			Rationale:          "High staff risk detected. Adding staff directly reduces patient-to-staff ratios, improving care quality and reducing overload risk. Emergency staffing protocols can be activated within hours.",
			CostEstimate:       12000,
			ImpactScore:        90,
			Priority:           1,
			ImplementationTime: "4 hours",
		}
	} else {
		staffing = model.Recommendation{
			Title:              "Optimize Staff Scheduling",
			Description:        "Review and adjust staff schedules to better align with predicted patient volumes and peak admission times",
			Rationale:          "Current staffing appears adequate but could be optimized. Better schedule alignment prevents future overload situations and improves efficiency without major cost increases.",
			CostEstimate:       2000,
			ImpactScore:        65,
			Priority:           1,
			ImplementationTime: "24 hours",
		}
	}

	var beds model.Recommendation
	if bedStress > model.HighRiskBedStress {
		beds = model.Recommendation{
			Title:              "Activate Surge Capacity Protocol",
			Description:        "Open additional beds in overflow areas and expedite discharge planning for stable patients",
			Rationale:          "High bed stress requires immediate capacity expansion. Surge protocols can quickly add 10-15% capacity while discharge acceleration frees existing beds. Combined approach maximizes available capacity.",
			CostEstimate:       8000,
			ImpactScore:        85,
			Priority:           2,
			ImplementationTime: "6 hours",
		}
	} else {
		beds = model.Recommendation{
			Title:              "Enhance Discharge Planning",
			Description:        "Implement early discharge planning rounds and coordinate with post-acute care facilities to reduce length of stay",
			Rationale:          "Proactive discharge planning prevents bed shortages before they occur. Early identification of discharge candidates and coordination with external facilities reduces average length of stay by 0.5-1 days.",
			CostEstimate:       5000,
			ImpactScore:        70,
			Priority:           2,
			ImplementationTime: "2 days",
		}
	}

	var systemic model.Recommendation
	if bedStress > 80 || staffRisk > 70 {
		systemic = model.Recommendation{
			Title:              "Implement Real-time Capacity Dashboard",
			Description:        "Deploy hospital-wide capacity monitoring system with automated alerts for department heads and administrators",
			Rationale:          "High stress levels indicate need for better situational awareness. Real-time dashboards enable faster decision-making and proactive resource allocation. Automated alerts ensure key personnel are notified immediately when thresholds are exceeded.",
			CostEstimate:       25000,
			ImpactScore:        75,
			Priority:           3,
			ImplementationTime: "2 weeks",
		}
	} else {
		systemic = model.Recommendation{
			Title:              "Preventive Maintenance Review",
			Description:        "Conduct comprehensive review of equipment and facility maintenance to prevent unexpected capacity reductions",
			Rationale:          "Moderate stress levels provide opportunity for preventive measures. Equipment failures can suddenly reduce capacity during critical times. Proactive maintenance prevents emergency situations and ensures all resources remain available.",
			CostEstimate:       15000,
			ImpactScore:        55,
			Priority:           3,
			ImplementationTime: "1 week",
		}
	}

	return []model.Recommendation{staffing, beds, systemic}
}

// ensureThree normalises any candidate list to exactly three entries:
// over-long lists keep the top three by impact score, short lists are topped
// up from the fallback table (skipping duplicate titles), and generic
// entries pad as a last resort.
func ensureThree(recs []model.Recommendation, bedStress, staffRisk float64) []model.Recommendation {
	if len(recs) == recommendationCount {
		return recs
	}

	if len(recs) > recommendationCount {
		sorted := make([]model.Recommendation, len(recs))
		copy(sorted, recs)
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].ImpactScore > sorted[b].ImpactScore
		})
		return sorted[:recommendationCount]
	}

	combined := make([]model.Recommendation, len(recs))
	copy(combined, recs)

	existing := make(map[string]struct{}, len(combined))
	for _, r := range combined {
		existing[strings.ToLower(r.Title)] = struct{}{}
	}

	for _, fb := range fallbackRecommendations(bedStress, staffRisk) {
		if len(combined) >= recommendationCount {
			break
		}
		if _, dup := existing[strings.ToLower(fb.Title)]; dup {
			continue
		}
		combined = append(combined, fb)
		existing[strings.ToLower(fb.Title)] = struct{}{}
	}

	for len(combined) < recommendationCount {
		combined = append(combined, model.Recommendation{
			Title:              fmt.Sprintf("Additional Capacity Measure %d", len(combined)),
			Description:        "Implement additional capacity management measures based on current situation",
			Rationale:          "Generic recommendation to ensure a complete set is provided",
			CostEstimate:       10000,
			ImpactScore:        50,
			Priority:           len(combined) + 1,
			ImplementationTime: "1 week",
		})
	}

	return combined[:recommendationCount]
}

// rankByImpactCost sorts by impact-to-cost ratio descending and reassigns
// priorities 1..3 in that order. The ranking key is computed locally — it is
// never attached to the Recommendation value.
func rankByImpactCost(recs []model.Recommendation) []model.Recommendation {
	type ranked struct {
		rec   model.Recommendation
		ratio float64
	}

	pairs := make([]ranked, len(recs))
	for i, r := range recs {
		denom := r.CostEstimate
		if denom < rankingCostFloor {
			denom = rankingCostFloor
		}
		pairs[i] = ranked{rec: r, ratio: r.ImpactScore / denom}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].ratio > pairs[b].ratio
	})

	out := make([]model.Recommendation, len(pairs))
	for i, p := range pairs {
		p.rec.Priority = i + 1
		out[i] = p.rec
	}
	return out
}

func stringOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
