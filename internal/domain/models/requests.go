package models

// Requests for the prediction HTTP endpoints.

type TickerRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
}

type RecommendRequest struct {
	Ticker         string `query:"ticker" json:"ticker" validate:"required,ticker"`
	RiskPreference string `query:"risk_preference" json:"risk_preference" validate:"omitempty,oneof=Low Medium High low medium high LOW MEDIUM HIGH"`
}

type TrainRequest struct {
	Tickers  []string `json:"tickers" validate:"omitempty,max=50,dive,ticker"`
	UseCache *bool    `json:"use_cache"`
}
