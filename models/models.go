package models

// InvocationRequest represents a single request to invoke a function
type InvocationRequest struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	FunctionID string `json:"functionId" yaml:"functionId"`
	Body       []byte `json:"body,omitempty" yaml:"body,omitempty"`
}

// InvocationResponse represents the decoded result of an invocation
type InvocationResponse struct {
	Body       string `json:"body" yaml:"body"`
	StatusCode int    `json:"statusCode" yaml:"statusCode"`
	RequestID  string `json:"requestId,omitempty" yaml:"requestId,omitempty"`
}

// IdentitySummary is a redacted, printable view of a signing identity
type IdentitySummary struct {
	Tenancy     string `json:"tenancy" yaml:"tenancy"`
	User        string `json:"user" yaml:"user"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	KeyFile     string `json:"keyFile" yaml:"keyFile"`
	Passphrase  bool   `json:"passphrase" yaml:"passphrase"`
	Region      string `json:"region" yaml:"region"`
	KeyLoaded   bool   `json:"keyLoaded" yaml:"keyLoaded"`
	KeyError    string `json:"keyError,omitempty" yaml:"keyError,omitempty"`
}
