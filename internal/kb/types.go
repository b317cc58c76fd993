package kb

// Query modes accepted by the knowledge graph backends. LightRAG supports
// all of them; the graphiti backend treats anything other than "bypass" as
// a graph search.
const (
	ModeLocal  = "local"
	ModeGlobal = "global"
	ModeHybrid = "hybrid"
	ModeNaive  = "naive"
	ModeMix    = "mix"
	ModeBypass = "bypass"
)

// Markdown knowledge kinds.
const (
	KindBusiness  = "business"
	KindTechnical = "technical"
)

// QueryResponse is the outcome of a knowledge graph query.
type QueryResponse struct {
	// Response holds the answer text when Status is "success".
	Response string `json:"response"`

	// Status is "success" or "error".
	Status string `json:"status"`

	// ErrorMessage describes the failure when Status is "error".
	ErrorMessage string `json:"error_message,omitempty"`
}

// InsertResponse is the outcome of saving text into the knowledge graph.
type InsertResponse struct {
	// Status is "success", "duplicated", "partial_success" or "failure".
	Status string `json:"status"`

	// Message carries backend detail about the insertion.
	Message string `json:"message,omitempty"`
}

// Success reports whether the insertion was accepted by the backend.
// Duplicated documents count as accepted.
func (r InsertResponse) Success() bool {
	return r.Status == "success" || r.Status == "duplicated"
}
