package retell

import (
	"bytes"
	"context"
	"dispatch-server/internal/observability"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const baseURL = "https://api.retellai.com"

var (
	// ErrVendorUnavailable indicates the vendor could not be reached or errored
	ErrVendorUnavailable = errors.New("voice vendor unavailable")
	// ErrVendorRejected indicates the vendor refused the request
	ErrVendorRejected = errors.New("voice vendor rejected request")
)

// Client calls the Retell voice agent API
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a new Retell API client
func NewClient(apiKey string, logger *observability.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// CallResponse represents the vendor's response to a call creation request
type CallResponse struct {
	CallID      string `json:"call_id"`
	AgentID     string `json:"agent_id"`
	CallStatus  string `json:"call_status,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// CreatePhoneCallParams represents parameters for placing an outbound phone call
type CreatePhoneCallParams struct {
	FromNumber       string            `json:"from_number"`
	ToNumber         string            `json:"to_number"`
	OverrideAgentID  string            `json:"override_agent_id,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

// CreatePhoneCall asks the vendor to place an outbound phone call
func (c *Client) CreatePhoneCall(ctx context.Context, params CreatePhoneCallParams) (CallResponse, error) {
	var resp CallResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/create-phone-call", params, &resp); err != nil {
		return CallResponse{}, err
	}
	return resp, nil
}

// CreateWebCallParams represents parameters for starting a browser-based call
type CreateWebCallParams struct {
	AgentID          string            `json:"agent_id"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

// CreateWebCall asks the vendor to start a web call and returns its access token
func (c *Client) CreateWebCall(ctx context.Context, params CreateWebCallParams) (CallResponse, error) {
	var resp CallResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/create-web-call", params, &resp); err != nil {
		return CallResponse{}, err
	}
	return resp, nil
}

// ResponseEngine identifies the LLM resource backing an agent
type ResponseEngine struct {
	Type  string `json:"type"`
	LLMID string `json:"llm_id"`
}

// Agent represents the vendor's agent resource
type Agent struct {
	AgentID                 string         `json:"agent_id"`
	AgentName               string         `json:"agent_name,omitempty"`
	ResponseEngine          ResponseEngine `json:"response_engine"`
	EnableBackchannel       *bool          `json:"enable_backchannel,omitempty"`
	InterruptionSensitivity *float64       `json:"interruption_sensitivity,omitempty"`
}

// GetAgent reads the vendor's agent resource
func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var agent Agent
	if err := c.doJSON(ctx, http.MethodGet, "/get-agent/"+agentID, nil, &agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// UpdateAgentParams represents behavioral settings pushed to the agent resource
type UpdateAgentParams struct {
	EnableBackchannel       *bool    `json:"enable_backchannel,omitempty"`
	InterruptionSensitivity *float64 `json:"interruption_sensitivity,omitempty"`
}

// UpdateAgent patches the vendor's agent resource
func (c *Client) UpdateAgent(ctx context.Context, agentID string, params UpdateAgentParams) (Agent, error) {
	var agent Agent
	if err := c.doJSON(ctx, http.MethodPatch, "/update-agent/"+agentID, params, &agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// LLM represents the vendor's LLM resource holding the conversation prompt
type LLM struct {
	LLMID         string `json:"llm_id"`
	GeneralPrompt string `json:"general_prompt"`
	BeginMessage  string `json:"begin_message,omitempty"`
}

// GetLLM reads the vendor's LLM resource
func (c *Client) GetLLM(ctx context.Context, llmID string) (LLM, error) {
	var llm LLM
	if err := c.doJSON(ctx, http.MethodGet, "/get-retell-llm/"+llmID, nil, &llm); err != nil {
		return LLM{}, err
	}
	return llm, nil
}

// UpdateLLMParams represents prompt settings pushed to the LLM resource
type UpdateLLMParams struct {
	GeneralPrompt *string `json:"general_prompt,omitempty"`
	BeginMessage  *string `json:"begin_message,omitempty"`
}

// UpdateLLM patches the vendor's LLM resource
func (c *Client) UpdateLLM(ctx context.Context, llmID string, params UpdateLLMParams) (LLM, error) {
	var llm LLM
	if err := c.doJSON(ctx, http.MethodPatch, "/update-retell-llm/"+llmID, params, &llm); err != nil {
		return LLM{}, err
	}
	return llm, nil
}

// doJSON performs an authenticated JSON request against the vendor API
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "vendor", Value: "retell"},
		observability.Field{Key: "vendor_path", Value: path},
	)

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.logger.Error(ctx, "failed to marshal vendor request", err)
			return fmt.Errorf("failed to marshal vendor request: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		c.logger.Error(ctx, "failed to create vendor request", err)
		return fmt.Errorf("failed to create vendor request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "failed to call vendor API", err)
		return fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.logger.Error(ctx, "vendor API returned server error", fmt.Errorf("status %d", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrVendorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error(ctx, "vendor API rejected request", fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
		return fmt.Errorf("%w: status %d", ErrVendorRejected, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.logger.Error(ctx, "failed to parse vendor response", err)
			return fmt.Errorf("failed to parse vendor response: %w", err)
		}
	}

	return nil
}
