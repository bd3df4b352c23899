package scoring

// RateResponse is the API representation of one conversion-rate row.
type RateResponse struct {
	KeyField       string  `json:"keyField"`
	KeyName        string  `json:"keyName"`
	ConversionRate float64 `json:"conversionRate"`
	PastTotalCount int     `json:"pastTotalCount"`
	PastTotalEst   int     `json:"pastTotalEst"`
}

// EnqueueResponse acknowledges a run deferred to the background worker.
type EnqueueResponse struct {
	ClientID string `json:"clientId"`
	Enqueued bool   `json:"enqueued"`
}

// RunResponse wraps a scoring run result with the client it ran for.
type RunResponse struct {
	ClientID string `json:"clientId"`
	Mode     string `json:"mode"`
	Result
}

// ToRateResponses maps stored rate rows onto the API shape.
func ToRateResponses(rows []ConversionRate) []RateResponse {
	out := make([]RateResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, RateResponse{
			KeyField:       string(row.KeyField),
			KeyName:        row.KeyName,
			ConversionRate: row.ConversionRate,
			PastTotalCount: row.PastTotalCount,
			PastTotalEst:   row.PastTotalEst,
		})
	}
	return out
}
