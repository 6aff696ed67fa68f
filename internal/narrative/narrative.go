// Package narrative turns the upstream stage results into the final
// human-readable recommendation. With a completion client configured it
// asks the model for the prose and tolerates malformed responses; without
// one it falls back to a deterministic local narrative. Either way a
// degraded pipeline still produces an explicit answer instead of failing.
package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"insight/internal/completion"
	"insight/internal/discovery"
	"insight/internal/filter"
	"insight/internal/question"
)

// Logger is the minimal logging seam. A nil Logger silences the generator.
type Logger interface {
	Printf(format string, v ...any)
}

// Input carries whatever upstream context survived. Any field except
// Question may be missing; the generator degrades instead of failing.
type Input struct {
	Question  question.Analysis
	Discovery *discovery.Result
	Filtered  *filter.Result

	// DegradedStages names stages that failed or ran partially; they are
	// surfaced in the limitations section.
	DegradedStages []string
}

// Output is the final pipeline product.
type Output struct {
	Summary         string   `json:"summary"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	NextSteps       []string `json:"next_steps"`
	Limitations     []string `json:"limitations"`

	// Confidence is capped at 0.95; zero when no data was available.
	Confidence float64 `json:"confidence"`

	// Text is the fully formatted narrative.
	Text string `json:"text"`
	// Source is "completion" or "local".
	Source string           `json:"source"`
	Usage  completion.Usage `json:"usage"`
}

// Generator produces the final narrative.
type Generator struct {
	client completion.Client
	log    Logger
}

// NewGenerator returns a generator. A nil client selects the local path.
func NewGenerator(client completion.Client, log Logger) *Generator {
	return &Generator{client: client, log: log}
}

func (g *Generator) logf(format string, v ...any) {
	if g.log != nil {
		g.log.Printf(format, v...)
	}
}

// Generate builds the narrative. It never returns an error for missing
// upstream data; the output simply says what was unavailable.
func (g *Generator) Generate(ctx context.Context, in Input) *Output {
	out := &Output{Source: "local"}
	out.Limitations = baseLimitations(in)
	out.Confidence = confidence(in.Filtered)

	if in.Filtered == nil || in.Filtered.SelectedRowCount == 0 {
		out.Summary = "No data available to answer the question."
		out.Insights = []string{"The filtering stage produced no rows, so no data-driven insights are possible."}
		out.Recommendations = []string{"Relax the filtering thresholds or verify the data sources, then rerun the analysis."}
		out.NextSteps = []string{"Check data source availability and threshold configuration."}
		out.Text = format(in, out)
		g.logf("stage=narrative source=local empty=true")
		return out
	}

	if g.client != nil {
		if done := g.fromCompletion(ctx, in, out); done {
			out.Text = format(in, out)
			return out
		}
	}

	g.localNarrative(in, out)
	out.Text = format(in, out)
	g.logf("stage=narrative source=%s insights=%d", out.Source, len(out.Insights))
	return out
}

// fromCompletion asks the model for the narrative. Returns false when the
// call failed and the local path should take over.
func (g *Generator) fromCompletion(ctx context.Context, in Input, out *Output) bool {
	resp, err := g.client.Complete(ctx, completion.Request{
		System:      "You are a retail data analyst. Answer with a single JSON object containing: summary (string), insights (array of strings), recommendations (array of strings), next_steps (array of strings).",
		Prompt:      buildPrompt(in),
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		g.logf("stage=narrative completion failed err=%v fallback=local", err)
		out.Limitations = append(out.Limitations, "narrative generation ran without the completion service")
		return false
	}
	out.Usage = resp.Usage
	out.Source = "completion"

	doc, err := completion.ParseJSONBlock(resp.Text)
	if err != nil {
		// Tolerate free text: keep it as the summary and say so.
		g.logf("stage=narrative parse failed err=%v", err)
		out.Summary = strings.TrimSpace(resp.Text)
		out.Limitations = append(out.Limitations, "completion response was not structured; raw text used as summary")
		return true
	}

	out.Summary = stringField(doc, "summary")
	out.Insights = stringSlice(doc, "insights")
	out.Recommendations = stringSlice(doc, "recommendations")
	out.NextSteps = stringSlice(doc, "next_steps")
	if out.Summary == "" && len(out.Insights) == 0 {
		out.Limitations = append(out.Limitations, "completion response carried no usable fields; local narrative used")
		return false
	}
	return true
}

// localNarrative derives a deterministic narrative from the stage results.
func (g *Generator) localNarrative(in Input, out *Output) {
	f := in.Filtered
	out.Source = "local"
	out.Summary = fmt.Sprintf(
		"Selected %d of %d rows via %s to address: %s",
		f.SelectedRowCount, f.OriginalRowCount, in.Question.Approach, in.Question.OriginalQuestion)

	out.Insights = append(out.Insights, fmt.Sprintf(
		"The selection covers %.0f%% of the observed value ranges with an efficiency score of %.2f.",
		f.CoverageScore*100, f.EfficiencyScore))
	if top := topRowSummary(f); top != "" {
		out.Insights = append(out.Insights, top)
	}
	if in.Discovery != nil {
		out.Insights = append(out.Insights, fmt.Sprintf(
			"Schema discovery profiled %d fields at %.2f data quality (confidence %.2f).",
			in.Discovery.Fields.Len(), in.Discovery.DataQualityScore, in.Discovery.Confidence))
	}

	out.Recommendations = append(out.Recommendations, fmt.Sprintf(
		"Focus the analysis on the %d selected rows; they carry the highest composite scores under the configured weights.",
		f.SelectedRowCount))
	if in.Discovery != nil && len(in.Discovery.NewFields) > 0 {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf(
			"Curate the %d newly discovered fields into the knowledge base to improve future runs.",
			len(in.Discovery.NewFields)))
	}

	out.NextSteps = append(out.NextSteps,
		"Review the selection rationale in the session artifacts.",
		"Validate the recommendation against the required business context: "+strings.Join(in.Question.ContextNeeded, ", ")+".")
}

func topRowSummary(f *filter.Result) string {
	if len(f.Selected) == 0 {
		return ""
	}
	top := f.Selected[0]
	var keys []string
	for k := range top.Row.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := top.Row.Values[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return fmt.Sprintf("Top-ranked row (score %.3f): %s", top.Score, strings.Join(parts, ", "))
}

// confidence scales with how much of the value range the selection covers,
// capped below full certainty.
func confidence(f *filter.Result) float64 {
	if f == nil || f.SelectedRowCount == 0 {
		return 0
	}
	c := 0.85 * f.CoverageScore
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func baseLimitations(in Input) []string {
	var out []string
	for _, stage := range in.DegradedStages {
		out = append(out, fmt.Sprintf("stage %s ran in degraded mode", stage))
	}
	if in.Filtered != nil && in.Filtered.OriginalRowCount > 0 && in.Filtered.SelectedRowCount > 0 {
		reduction := 1 - float64(in.Filtered.SelectedRowCount)/float64(in.Filtered.OriginalRowCount)
		if reduction > 0.5 {
			out = append(out, fmt.Sprintf("analysis based on a %.0f%% data reduction for efficiency", reduction*100))
		}
	}
	if in.Discovery != nil && in.Discovery.DataQualityScore < 0.9 {
		out = append(out, "some data quality issues may affect precision")
	}
	if in.Discovery == nil {
		out = append(out, "schema enrichment unavailable; field semantics were not applied")
	} else if in.Discovery.Confidence < 0.5 {
		out = append(out, fmt.Sprintf("discovery confidence is low (%.2f); treat field semantics with caution", in.Discovery.Confidence))
	}
	if in.Question.Confidence < 0.5 {
		out = append(out, fmt.Sprintf("question classification was a low-confidence fallback (%.2f)", in.Question.Confidence))
	}
	return out
}

// format renders the output sections as the final report text.
func format(in Input, out *Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", in.Question.OriginalQuestion)
	fmt.Fprintf(&b, "Approach: %s (%s)\n\n", in.Question.Approach, in.Question.QuestionType)
	fmt.Fprintf(&b, "Summary\n-------\n%s\n", out.Summary)

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("Insights", out.Insights)
	section("Recommendations", out.Recommendations)
	section("Next steps", out.NextSteps)
	section("Limitations", out.Limitations)
	fmt.Fprintf(&b, "\nConfidence: %.0f%%\n", out.Confidence*100)
	return b.String()
}

func stringField(doc map[string]any, key string) string {
	if s, ok := doc[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringSlice(doc map[string]any, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// buildPrompt summarizes the stage results for the completion call.
func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business question: %s\n", in.Question.OriginalQuestion)
	fmt.Fprintf(&b, "Question type: %s, analytical approach: %s\n", in.Question.QuestionType, in.Question.Approach)

	if in.Discovery != nil {
		fmt.Fprintf(&b, "\nSchema: %d fields, data quality %.2f, discovery confidence %.2f\n",
			in.Discovery.Fields.Len(), in.Discovery.DataQualityScore, in.Discovery.Confidence)
		for _, name := range in.Discovery.Fields.Names() {
			m, _ := in.Discovery.Fields.Get(name)
			fmt.Fprintf(&b, "- %s (%s, tier %d, completeness %.2f): %s\n",
				m.Name, m.DataType, m.ImportanceTier, m.Completeness, m.BusinessPurpose)
		}
	}

	f := in.Filtered
	fmt.Fprintf(&b, "\nSelected %d of %d rows (coverage %.2f, efficiency %.2f):\n",
		f.SelectedRowCount, f.OriginalRowCount, f.CoverageScore, f.EfficiencyScore)
	limit := len(f.Selected)
	if limit > 10 {
		limit = 10
	}
	for _, s := range f.Selected[:limit] {
		var keys []string
		for k := range s.Row.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+s.Row.Values[k])
		}
		fmt.Fprintf(&b, "- score %.3f: %s\n", s.Score, strings.Join(parts, ", "))
	}

	b.WriteString("\nAnswer the business question from the selected rows only.\n")
	return b.String()
}
