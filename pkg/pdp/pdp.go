// Package pdp wraps inbound user-origin commands in a decision request
// against an external policy decision point (spec.md §6: "every inbound
// user-origin command is wrapped in a decision request ... on deny the
// command is rejected with the decision's message"). The PDP service
// itself is an explicit black box; this package only defines and
// consumes its HTTP decision contract.
package pdp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/testbedctl/actorcore/pkg/types"
)

// Action is the user-origin operation being authorized.
type Action string

const (
	ActionQuery   Action = "query"
	ActionDemand  Action = "demand"
	ActionUpdate  Action = "update"
	ActionClose   Action = "close"
	ActionClaim   Action = "claim"
	ActionReclaim Action = "reclaim"
	ActionTicket  Action = "ticket"
)

// ResourceKind is the kind of object the action targets.
type ResourceKind string

const (
	ResourceDelegation ResourceKind = "delegation"
	ResourceUser       ResourceKind = "user"
	ResourceSlice      ResourceKind = "slice"
	ResourceSliver     ResourceKind = "sliver"
	ResourceResources  ResourceKind = "resources"
)

// Request is the decision request sent to the PDP endpoint.
type Request struct {
	Action       Action       `json:"action"`
	ResourceType ResourceKind `json:"resource_type"`
	Subject      string       `json:"subject"`
	ResourceID   string       `json:"resource_id,omitempty"`
}

// Decision is the PDP's response.
type Decision struct {
	Allow   bool   `json:"allow"`
	Message string `json:"message,omitempty"`
}

// Authorizer decides whether a command may proceed.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// AlwaysAllow is the Authorizer used when pdp.enable=false: every command
// proceeds unconditionally.
type AlwaysAllow struct{}

func (AlwaysAllow) Authorize(ctx context.Context, req Request) (Decision, error) {
	return Decision{Allow: true}, nil
}

// Client is an HTTP Authorizer against an external PDP decision endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient builds a Client posting decision requests to url with the
// given request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Authorize(ctx context.Context, req Request) (Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Decision{}, fmt.Errorf("marshal pdp request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("build pdp request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Decision{}, types.NewError(types.ErrTransportError, "pdp request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Decision{}, types.NewError(types.ErrTransportError, "pdp returned status %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("decode pdp response: %w", err)
	}
	return decision, nil
}

// New builds the Authorizer a deployment should use given config: an
// AlwaysAllow stub when disabled, an HTTP Client otherwise.
func New(enable bool, url string, timeoutSeconds int) Authorizer {
	if !enable {
		return AlwaysAllow{}
	}
	return NewClient(url, time.Duration(timeoutSeconds)*time.Second)
}
