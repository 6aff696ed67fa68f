// Package question maps a free-text business question onto a closed
// taxonomy of question types and analytical approaches, and derives the
// filtering criteria and required-field list the filter stage consumes.
//
// Classification is pattern-based, not statistical: the lower-cased question
// is tested against ordered substring pattern sets, first match wins, and an
// unmatched question falls back to performance analysis so the pipeline
// never halts on an unclassifiable input.
package question

import (
	"strings"

	"insight/internal/filter"
)

// Type is the closed question taxonomy.
type Type string

const (
	TypePerformanceAnalysis      Type = "performance_analysis"
	TypeLocationComparison       Type = "location_comparison"
	TypeTrendIdentification      Type = "trend_identification"
	TypeRecommendationGeneration Type = "recommendation_generation"
	TypeRootCauseAnalysis        Type = "root_cause_analysis"
)

// Approach is the closed analytical-approach taxonomy.
type Approach string

const (
	ApproachRanking     Approach = "ranking_analysis"
	ApproachComparative Approach = "comparative_analysis"
	ApproachTrend       Approach = "trend_analysis"
	ApproachThreshold   Approach = "threshold_analysis"
	ApproachCorrelation Approach = "correlation_analysis"
)

// fallbackConfidence flags results that only classified via the default.
const fallbackConfidence = 0.3

// Analysis is the classification output, created once per run and never
// mutated afterwards.
type Analysis struct {
	OriginalQuestion string          `json:"original_question"`
	QuestionType     Type            `json:"question_type"`
	Approach         Approach        `json:"analytical_approach"`
	RequiredFields   []string        `json:"required_fields"`
	ContextNeeded    []string        `json:"business_context_needed"`
	Criteria         filter.Criteria `json:"filtering_criteria"`
	Confidence       float64         `json:"confidence_score"`
	MatchedPatterns  []string        `json:"matched_patterns,omitempty"`
}

// patternSet pairs a question type with its ordered trigger substrings.
type patternSet struct {
	qtype    Type
	patterns []string
}

// patternSets are evaluated in order; performance analysis is checked first
// and ties resolve to the earliest category.
var patternSets = []patternSet{
	{TypePerformanceAnalysis, []string{
		"top", "best", "worst", "highest", "lowest", "performance", "performing",
		"rank", "leading", "underperform",
	}},
	{TypeLocationComparison, []string{
		"compare", "comparison", "versus", " vs ", "between", "region", "location",
		"store", "branch", "across",
	}},
	{TypeTrendIdentification, []string{
		"trend", "over time", "growth", "decline", "seasonal", "trajectory",
		"increasing", "decreasing", "change over",
	}},
	{TypeRecommendationGeneration, []string{
		"recommend", "should we", "suggest", "advice", "next step", "action",
		"improve", "optimize",
	}},
	{TypeRootCauseAnalysis, []string{
		"why", "cause", "reason", "driver", "because", "explain", "root",
		"due to",
	}},
}

// approachByType is the fixed question-type to approach lookup.
var approachByType = map[Type]Approach{
	TypePerformanceAnalysis:      ApproachRanking,
	TypeLocationComparison:       ApproachComparative,
	TypeTrendIdentification:      ApproachTrend,
	TypeRecommendationGeneration: ApproachThreshold,
	TypeRootCauseAnalysis:        ApproachCorrelation,
}

// requiredFieldsByType and contextByType derive the downstream hints from
// the question type. Fields absent from the schema are not an error here;
// absence surfaces later in the filter and output stages.
var requiredFieldsByType = map[Type][]string{
	TypePerformanceAnalysis:      {"PRIORITY_SCORE", "SALES_VOLUME", "PRODUCT"},
	TypeLocationComparison:       {"REGION", "SALES_VOLUME", "PRIORITY_SCORE"},
	TypeTrendIdentification:      {"REPORT_DATE", "SALES_VOLUME", "PRODUCT"},
	TypeRecommendationGeneration: {"PRIORITY_SCORE", "SALES_VOLUME", "PRODUCT", "REGION"},
	TypeRootCauseAnalysis:        {"PRIORITY_SCORE", "SALES_VOLUME", "REGION", "PRODUCT"},
}

var contextByType = map[Type][]string{
	TypePerformanceAnalysis:      {"performance benchmarks", "ranking thresholds"},
	TypeLocationComparison:       {"regional segmentation", "comparable store criteria"},
	TypeTrendIdentification:      {"reporting calendar", "seasonality baseline"},
	TypeRecommendationGeneration: {"business objectives", "acceptable risk thresholds"},
	TypeRootCauseAnalysis:        {"known causal factors", "operational constraints"},
}

// Classify maps the question to its type, approach, criteria, and field
// hints. An unmatched question classifies as performance analysis with a
// low confidence score; callers must treat Confidence as the uncertainty
// signal.
func Classify(q string) Analysis {
	lowered := strings.ToLower(q)

	a := Analysis{
		OriginalQuestion: q,
		QuestionType:     TypePerformanceAnalysis,
		Confidence:       fallbackConfidence,
	}

	for _, set := range patternSets {
		var matched []string
		for _, p := range set.patterns {
			if strings.Contains(lowered, p) {
				matched = append(matched, p)
			}
		}
		if len(matched) > 0 {
			a.QuestionType = set.qtype
			a.MatchedPatterns = matched
			a.Confidence = matchConfidence(len(matched))
			break
		}
	}

	a.Approach = approachByType[a.QuestionType]
	a.RequiredFields = append([]string(nil), requiredFieldsByType[a.QuestionType]...)
	a.ContextNeeded = append([]string(nil), contextByType[a.QuestionType]...)
	a.Criteria = CriteriaFor(a.QuestionType)
	return a
}

// matchConfidence grows with corroborating pattern hits but never reaches
// certainty.
func matchConfidence(matches int) float64 {
	if matches > 3 {
		matches = 3
	}
	return 0.6 + 0.1*float64(matches)
}

// CriteriaFor returns the filtering criteria for a question type. The
// baseline is shared by all types today; the seam exists so future types
// can diverge without touching the classifier.
func CriteriaFor(Type) filter.Criteria {
	return filter.Default()
}
