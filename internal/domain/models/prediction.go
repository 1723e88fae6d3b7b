package models

// Coarse actions derived from the predicted risk class.
const (
	ActionBuy  = "BUY"
	ActionHold = "HOLD"
	ActionSell = "SELL"
)

// RiskPrediction is the classifier output for one ticker.
type RiskPrediction struct {
	Ticker          string             `json:"ticker"`
	RiskClass       string             `json:"risk_class"`
	Probabilities   map[string]float64 `json:"probabilities"`
	Volatility      float64            `json:"volatility"`
	ConfidenceScore float64            `json:"confidence_score"`
	Recommendation  string             `json:"recommendation"`
	ModelVersion    string             `json:"model_version,omitempty"`
}

// ReturnPrediction is the regressor output for one ticker.
type ReturnPrediction struct {
	Ticker                 string  `json:"ticker"`
	PredictedNextDayReturn float64 `json:"predicted_next_day_return"`
	ModelVersion           string  `json:"model_version,omitempty"`
}

// Recommendation is a candidate sharing the input ticker's cluster.
type Recommendation struct {
	Ticker    string `json:"ticker"`
	RiskClass string `json:"risk_class"`
	ClusterID int    `json:"cluster_id"`
}

// Reasons a candidate did not make it into the recommendation list.
const (
	SkipClusterMismatch = "cluster_mismatch"
	SkipRiskMismatch    = "risk_mismatch"
	SkipError           = "error"
)

// Skipped explains why a candidate was excluded.
type Skipped struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// CandidateResult holds exactly one of Candidate or Skipped.
type CandidateResult struct {
	Ticker    string          `json:"ticker"`
	Candidate *Recommendation `json:"candidate,omitempty"`
	Skipped   *Skipped        `json:"skipped,omitempty"`
}

// Recommendations is the full fan-out outcome for one input ticker.
type Recommendations struct {
	InputTicker    string            `json:"input_ticker"`
	InputClusterID int               `json:"input_cluster_id"`
	RiskPreference string            `json:"risk_preference,omitempty"`
	Results        []CandidateResult `json:"-"`
}

// Matches returns the accepted candidates in universe order.
func (r *Recommendations) Matches() []Recommendation {
	out := make([]Recommendation, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Candidate != nil {
			out = append(out, *res.Candidate)
		}
	}
	return out
}

// Skips returns the excluded candidates, optionally restricted to one reason.
func (r *Recommendations) Skips(reason string) []Skipped {
	out := make([]Skipped, 0)
	for _, res := range r.Results {
		if res.Skipped == nil {
			continue
		}
		if reason == "" || res.Skipped.Reason == reason {
			out = append(out, *res.Skipped)
		}
	}
	return out
}
