package types

// SettingsRequest saves the provider choice of a session
type SettingsRequest struct {
	SessionID   string `json:"sessionId,omitempty"`
	Provider    string `json:"provider"`
	DeepseekKey string `json:"deepseekKey,omitempty"`
	OpenaiKey   string `json:"openaiKey,omitempty"`
}

// SettingsResponse confirms saved settings
type SettingsResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ToolResult is a tool outcome as the client reports it back for synthesis
type ToolResult struct {
	ToolCallID string      `json:"toolCallId,omitempty"`
	Tool       string      `json:"tool"`
	Status     string      `json:"status,omitempty"`
	Summary    string      `json:"summary,omitempty"`
	Result     string      `json:"result,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// SynthesizeRequest asks for a final answer over collected tool results
type SynthesizeRequest struct {
	Query           string       `json:"query" binding:"required"`
	ToolResults     []ToolResult `json:"toolResults"`
	UseGlobalMemory bool         `json:"useGlobalMemory"`
	SessionID       string       `json:"sessionId,omitempty"`
}

// SynthesizeResponse carries the final answer
type SynthesizeResponse struct {
	Answer string `json:"answer"`
}

// CryptoPriceRequest is the direct price endpoint input. Action may be
// omitted when Query is set.
type CryptoPriceRequest struct {
	Action   string   `json:"action"`
	CoinID   string   `json:"coinId"`
	Currency string   `json:"currency"`
	Amount   *float64 `json:"amount"`
	Years    *float64 `json:"years"`
	APY      *float64 `json:"apy"`
	Query    string   `json:"query"`
}

// CryptoPriceResponse is the failure body of the price endpoint
type CryptoPriceResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MCPExecuteRequest runs one tool by name
type MCPExecuteRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

// MemoryEntryRequest stores one global memory fact
type MemoryEntryRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// ErrorResponse standard error format
type ErrorResponse struct {
	Error string `json:"error"`
}
