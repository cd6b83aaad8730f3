package cost

// ModelRate holds per-model token pricing in USD per 1,000 tokens, plus a
// rough latency hint for estimate responses.
type ModelRate struct {
	In            float64 `yaml:"in" mapstructure:"in"`
	Out           float64 `yaml:"out" mapstructure:"out"`
	LatencyHintMS int     `yaml:"latency_hint_ms" mapstructure:"latency_hint_ms"`
}

// Rates maps model identifiers ("provider/model") to pricing.
type Rates map[string]ModelRate

// Token estimation heuristics for prompts whose only known dimension is
// character count.
const (
	charsPerToken       = 4
	defaultOutputTokens = 256
)

// Calculator computes request cost estimates from a pricing table.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator. Nil rates fall back to the defaults.
func NewCalculator(rates Rates) *Calculator {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Calculator{rates: rates}
}

// Estimate computes the USD cost for a request against the given model.
// Unknown models cost zero, matching how untracked models are billed
// upstream of the ledger.
func (c *Calculator) Estimate(model string, tokensIn, tokensOut int) float64 {
	rate := c.rates[model]
	return (float64(tokensIn)/1000)*rate.In + (float64(tokensOut)/1000)*rate.Out
}

// Known reports whether the pricing table has an entry for model.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates[model]
	return ok
}

// EstimateTokens approximates the token count of a prompt from its
// character count (about four characters per token, never below one).
func EstimateTokens(charCount int) int {
	if charCount <= 0 {
		return 1
	}
	n := (charCount + charsPerToken - 1) / charsPerToken
	if n < 1 {
		return 1
	}
	return n
}

// ModelEstimate is a per-candidate-model cost projection for a prompt.
type ModelEstimate struct {
	Model     string  `json:"model"`
	TokensIn  int     `json:"est_tokens_in"`
	TokensOut int     `json:"est_tokens_out"`
	CostUSD   float64 `json:"est_cost_usd"`
	LatencyMS int     `json:"est_latency_ms"`
}

// ForPrompt projects cost across candidate models for a prompt of the
// given character count, assuming the default output budget.
func (c *Calculator) ForPrompt(charCount int, models []string) []ModelEstimate {
	tokensIn := EstimateTokens(charCount)
	items := make([]ModelEstimate, 0, len(models))
	for _, m := range models {
		items = append(items, ModelEstimate{
			Model:     m,
			TokensIn:  tokensIn,
			TokensOut: defaultOutputTokens,
			CostUSD:   c.Estimate(m, tokensIn, defaultOutputTokens),
			LatencyMS: c.rates[m].LatencyHintMS,
		})
	}
	return items
}

// DefaultCandidates returns the stock models estimated when a caller
// names none, cheapest first.
func DefaultCandidates() []string {
	return []string{
		"openai/gpt-4o-mini",
		"openai/gpt-4o",
		"openai/gpt-3.5-turbo",
		"anthropic/claude-3-haiku",
		"local/tiny-llama",
	}
}

// DefaultRates returns the stock pricing table.
func DefaultRates() Rates {
	return Rates{
		"openai/gpt-4o-mini":       {In: 0.15, Out: 0.60, LatencyHintMS: 800},
		"openai/gpt-4o":            {In: 2.50, Out: 10.00, LatencyHintMS: 1800},
		"openai/gpt-3.5-turbo":     {In: 0.50, Out: 1.50, LatencyHintMS: 600},
		"anthropic/claude-3-haiku": {In: 0.25, Out: 1.25, LatencyHintMS: 700},
		"local/tiny-llama":         {In: 0.00, Out: 0.00, LatencyHintMS: 150},
	}
}
