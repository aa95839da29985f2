package domain

// Classification is the LLM's triage of a support request.
type Classification struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Summary  string `json:"summary"`
}

// TicketRef identifies an issue created in the external tracker.
type TicketRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}
