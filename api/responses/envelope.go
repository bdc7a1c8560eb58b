package responses

// Success wraps every 2xx body.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error body.
type Failure struct {
	Error Problem `json:"error"`
}

type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}
