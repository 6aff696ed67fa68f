package question

import (
	"testing"
)

func TestClassifyByType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		want     Type
		approach Approach
	}{
		{"What are the top performing products this quarter?", TypePerformanceAnalysis, ApproachRanking},
		{"Compare sales between the North and South regions", TypeLocationComparison, ApproachComparative},
		{"Is there a seasonal trend in our order volume?", TypeTrendIdentification, ApproachTrend},
		{"What should we do to improve margins?", TypeRecommendationGeneration, ApproachThreshold},
		{"Explain the reason behind the drop in repeat purchases", TypeRootCauseAnalysis, ApproachCorrelation},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			a := Classify(tt.question)
			if a.QuestionType != tt.want {
				t.Errorf("Classify(%q).QuestionType = %s, want %s", tt.question, a.QuestionType, tt.want)
			}
			if a.Approach != tt.approach {
				t.Errorf("Approach = %s, want %s", a.Approach, tt.approach)
			}
			if a.Confidence < 0.6 {
				t.Errorf("matched question Confidence = %v, want >= 0.6", a.Confidence)
			}
			if len(a.RequiredFields) == 0 {
				t.Error("RequiredFields empty")
			}
		})
	}
}

func TestClassifyFallback(t *testing.T) {
	t.Parallel()

	a := Classify("Summarize the widget situation")
	if a.QuestionType != TypePerformanceAnalysis {
		t.Errorf("fallback type = %s, want %s", a.QuestionType, TypePerformanceAnalysis)
	}
	if a.Approach != ApproachRanking {
		t.Errorf("fallback approach = %s, want %s", a.Approach, ApproachRanking)
	}
	if a.Confidence != fallbackConfidence {
		t.Errorf("fallback Confidence = %v, want %v", a.Confidence, fallbackConfidence)
	}
	if len(a.MatchedPatterns) != 0 {
		t.Errorf("fallback matched patterns: %v", a.MatchedPatterns)
	}
}

func TestPerformanceCheckedFirst(t *testing.T) {
	t.Parallel()

	// Contains both performance ("top") and root-cause ("why") patterns.
	a := Classify("Why are our top stores doing so well?")
	if a.QuestionType != TypePerformanceAnalysis {
		t.Errorf("ambiguous question classified as %s, want %s", a.QuestionType, TypePerformanceAnalysis)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	t.Parallel()

	if a := Classify("COMPARE REGION RESULTS"); a.QuestionType != TypeLocationComparison {
		t.Errorf("upper-cased question classified as %s", a.QuestionType)
	}
}

func TestConfidenceGrowsWithMatches(t *testing.T) {
	t.Parallel()

	one := Classify("show the rank")
	many := Classify("rank the top and worst performing products by performance")
	if many.Confidence <= one.Confidence {
		t.Errorf("confidence %v with many matches not above %v with one", many.Confidence, one.Confidence)
	}
	if many.Confidence > 0.95 {
		t.Errorf("Confidence = %v exceeds cap", many.Confidence)
	}
}

func TestCriteriaSharedBaseline(t *testing.T) {
	t.Parallel()

	base := CriteriaFor(TypePerformanceAnalysis)
	for _, qt := range []Type{TypeLocationComparison, TypeTrendIdentification, TypeRecommendationGeneration, TypeRootCauseAnalysis} {
		c := CriteriaFor(qt)
		if c != base {
			t.Errorf("CriteriaFor(%s) diverges from baseline", qt)
		}
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("baseline criteria invalid: %v", err)
	}
	if base.MaxRows != 25 {
		t.Errorf("baseline MaxRows = %d, want 25", base.MaxRows)
	}
}
