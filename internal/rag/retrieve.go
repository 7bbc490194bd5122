package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// DefaultTopK is the number of similar crises retrieved when the caller does
// not specify one.
const DefaultTopK = 5

// crisisFetchLimit bounds how much history one retrieval considers.
const crisisFetchLimit = 100

// CrisisSource is the slice of the crisis store the retriever needs.
type CrisisSource interface {
	ListCrises(ctx context.Context, limit int) ([]model.CrisisLesson, error)
}

// Retriever ranks stored crisis lessons by similarity to the current
// situation. Retrieval is best-effort: any store failure is logged and
// surfaces as an empty result, never as an error.
type Retriever struct {
	crises CrisisSource
	logger *slog.Logger
}

// NewRetriever constructs a Retriever over the given crisis source.
func NewRetriever(crises CrisisSource, logger *slog.Logger) *Retriever {
	return &Retriever{crises: crises, logger: logger}
}

// SimilarCrises returns up to topK stored lessons ranked by descending cosine
// similarity to the context, ties keeping store order. Each returned lesson
// carries its SimilarityScore clamped to [0,1]. An empty or failing store
// yields an empty slice.
func (r *Retriever) SimilarCrises(ctx context.Context, hctx model.HospitalContext, topK int) []model.CrisisLesson {
	if topK <= 0 {
		topK = DefaultTopK
	}

	lessons, err := r.crises.ListCrises(ctx, crisisFetchLimit)
	if err != nil {
		r.logger.Warn("rag: crisis retrieval failed, continuing without lessons", "error", err)
		return []model.CrisisLesson{}
	}
	if len(lessons) == 0 {
		return []model.CrisisLesson{}
	}

	query := Embed(ContextDescription(hctx))

	scored := make([]model.CrisisLesson, len(lessons))
	for i, lesson := range lessons {
		similarity := cosineSimilarity(query, Embed(lesson.CrisisDescription))
		lesson.SimilarityScore = model.Clamp(similarity, 0, 1)
		scored[i] = lesson
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].SimilarityScore > scored[b].SimilarityScore
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// ContextDescription renders the retrieval query text for a situation
// snapshot. The exact wording is part of the embedding input, so changing it
// changes every similarity score.
func ContextDescription(hctx model.HospitalContext) string {
	var sb strings.Builder
	sb.WriteString("Hospital Crisis Context:\n")
	fmt.Fprintf(&sb, "- Bed Stress Level: %.1f%%\n", hctx.CurrentBedStress)
	fmt.Fprintf(&sb, "- Staff Risk Level: %.1f%%\n", hctx.CurrentStaffRisk)
	fmt.Fprintf(&sb, "- Recent Trends: %s\n", hctx.RecentTrend)
	fmt.Fprintf(&sb, "- Predicted Admissions: %d\n", hctx.PredictedAdmissions)
	fmt.Fprintf(&sb, "- Current Staff: %d\n", hctx.CurrentStaff)
	sb.WriteString("\nThis represents a hospital facing capacity and staffing challenges that require immediate attention.")
	return sb.String()
}
