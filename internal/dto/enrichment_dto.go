package dto

// EnrichmentJob is the watermill payload asking for a profile lookup.
type EnrichmentJob struct {
	VisitorId       string `json:"visitor_id"`
	InstagramHandle string `json:"instagram_handle"`
}
