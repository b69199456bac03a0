// Package pricing holds the static per-model token pricing table the Spend
// Monitor consults to derive a dollar cost when a caller reports token
// counts without a cost. Grounded on the teacher's
// pkg/agent/middleware/metrics Prometheus cost-counter pattern
// (llm_costs_total) and pkg/metrics.QueryService, adapted from query-time
// aggregation against an external Prometheus server to a write-time static
// table, since this module has no external metrics backend to query.
package pricing

// PriceEntry is the per-million-token input/output price for one model.
type PriceEntry struct {
	InputPerMillionUSD  float64
	OutputPerMillionUSD float64
}

// Table maps a model name to its pricing. Unknown models are simply absent;
// callers treat a miss as "cost unknown" rather than an error.
var Table = map[string]PriceEntry{
	"opus":   {InputPerMillionUSD: 15.00, OutputPerMillionUSD: 75.00},
	"sonnet": {InputPerMillionUSD: 3.00, OutputPerMillionUSD: 15.00},
	"haiku":  {InputPerMillionUSD: 0.80, OutputPerMillionUSD: 4.00},
}

// Cost derives a dollar cost for inputTokens/outputTokens at model's listed
// price. ok is false when model has no pricing entry, in which case callers
// should log and treat cost as zero rather than failing the caller's tick.
func Cost(model string, inputTokens, outputTokens int64) (costUSD float64, ok bool) {
	entry, ok := Table[model]
	if !ok {
		return 0, false
	}
	cost := float64(inputTokens)/1_000_000*entry.InputPerMillionUSD +
		float64(outputTokens)/1_000_000*entry.OutputPerMillionUSD
	return cost, true
}
