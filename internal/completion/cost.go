package completion

// ModelSpec holds the per-model limits and per-token pricing used for cost
// accounting in session artifacts.
type ModelSpec struct {
	Name               string
	ContextWindow      int64
	RecommendedMaxOut  int64
	CostPerInputToken  float64
	CostPerOutputToken float64
}

// models keys both the short alias and the full model name.
var models = map[string]ModelSpec{
	"claude-3-5-sonnet": {
		Name:               "claude-3-5-sonnet-20241022",
		ContextWindow:      200000,
		RecommendedMaxOut:  4000,
		CostPerInputToken:  0.000003,
		CostPerOutputToken: 0.000015,
	},
	"claude-3-haiku": {
		Name:               "claude-3-haiku-20240307",
		ContextWindow:      200000,
		RecommendedMaxOut:  4000,
		CostPerInputToken:  0.00000025,
		CostPerOutputToken: 0.00000125,
	},
}

const defaultModelAlias = "claude-3-5-sonnet"

// DefaultModel is the full name of the model used when none is configured.
func DefaultModel() string { return models[defaultModelAlias].Name }

// LookupModel resolves a model alias or full name. Unknown names fall back
// to the default model so cost estimates stay defined.
func LookupModel(name string) ModelSpec {
	if spec, ok := models[name]; ok {
		return spec
	}
	for _, spec := range models {
		if spec.Name == name {
			return spec
		}
	}
	return models[defaultModelAlias]
}

// EstimateCost prices a call's token usage in USD for the given model.
func EstimateCost(model string, u Usage) float64 {
	spec := LookupModel(model)
	return float64(u.InputTokens)*spec.CostPerInputToken +
		float64(u.OutputTokens)*spec.CostPerOutputToken
}

// FitsContext reports whether a prompt of the given byte length leaves room
// for a response, assuming roughly four bytes per token and a 20% buffer.
func FitsContext(model string, promptLen int) bool {
	spec := LookupModel(model)
	estimated := int64(promptLen / 4)
	return estimated < spec.ContextWindow*8/10
}
