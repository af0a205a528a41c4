package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/halcyon-app/halcyon/internal/chat"
	"github.com/halcyon-app/halcyon/internal/models"
)

// Remote is the server pipeline as seen from the client.
type Remote interface {
	Send(ctx context.Context, req chat.Request) (*chat.Response, error)
	Conversation(ctx context.Context, id string) (*models.Conversation, error)
}

// HTTPRemote speaks the chat API over HTTP.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRemote{baseURL: baseURL, client: client}
}

func (r *HTTPRemote) Send(ctx context.Context, req chat.Request) (*chat.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, chat.Transient("network_failed", "could not reach the chat service", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeError(httpResp)
	}

	var resp chat.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, chat.Transient("bad_response", "could not decode the chat response", err)
	}
	return &resp, nil
}

func (r *HTTPRemote) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	u := r.baseURL + "/api/conversation?id=" + url.QueryEscape(id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, chat.Transient("network_failed", "could not reach the chat service", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeError(httpResp)
	}

	var conv models.Conversation
	if err := json.NewDecoder(httpResp.Body).Decode(&conv); err != nil {
		return nil, chat.Transient("bad_response", "could not decode the conversation", err)
	}
	return &conv, nil
}

// decodeError rebuilds a typed failure from the server's error envelope.
// The envelope's kind field restores the server's exact classification;
// the status-code mapping is the fallback for responses produced by
// something other than the chat service, e.g. a proxy.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
		Kind  string `json:"kind"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	if envelope.Code == "" {
		envelope.Code = "http_error"
	}
	if envelope.Error == "" {
		envelope.Error = resp.Status
	}

	if kind := chat.ParseKind(envelope.Kind); kind != chat.KindUnknown {
		return &chat.Error{Kind: kind, Code: envelope.Code, Message: envelope.Error}
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return chat.Validation(envelope.Code, envelope.Error)
	case resp.StatusCode == http.StatusNotFound:
		return chat.Persistence(envelope.Code, envelope.Error, nil)
	case resp.StatusCode == http.StatusBadGateway:
		return chat.Provider(envelope.Code, envelope.Error, nil)
	default:
		return chat.Transient(envelope.Code, envelope.Error, nil)
	}
}
