package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Outcome classifies one fetch attempt
type Outcome int

const (
	// Success means the endpoint answered; Events may be empty.
	Success Outcome = iota
	// NotApplicable means the endpoint does not exist for this account or plan.
	NotApplicable
	// Failure is a transport, decoding or unrecognized API error.
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotApplicable:
		return "not_applicable"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a single strategy
type Result struct {
	Outcome Outcome
	Events  []types.RawEvent
	Err     error
}

// notApplicableCodes are the v4 error codes returned when a route is not
// available for the zone ("No route for that URI", "Could not route to ...").
var notApplicableCodes = map[int]bool{
	7000: true,
	7003: true,
}

type restStrategy struct {
	name string
	path string
}

var restStrategies = []restStrategy{
	{name: "security-events", path: "/zones/{zone}/security/events"},
	{name: "firewall-events", path: "/zones/{zone}/firewall/events"},
}

func (s restStrategy) fetch(ctx context.Context, r *resty.Client, zoneID string, since time.Time, pageSize int) Result {
	params := map[string]string{
		"per_page": strconv.Itoa(pageSize),
		"page":     "1",
	}
	if !since.IsZero() {
		params["since"] = since.UTC().Format(time.RFC3339)
	}

	resp, err := r.R().
		SetContext(ctx).
		SetPathParam("zone", zoneID).
		SetQueryParams(params).
		Get(s.path)
	if err != nil {
		return Result{Outcome: Failure, Err: err}
	}
	return classifyResponse(resp.StatusCode(), resp.Body())
}

// classifyResponse turns a REST listing response into a Result
func classifyResponse(status int, body []byte) Result {
	if status == http.StatusNotFound {
		return Result{Outcome: NotApplicable}
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{Outcome: Failure, Err: fmt.Errorf("http %d: malformed body: %w", status, err)}
	}
	for _, e := range payload.Errors {
		if notApplicableCodes[e.Code] {
			return Result{Outcome: NotApplicable}
		}
	}
	if status != http.StatusOK || !payload.Success {
		return Result{Outcome: Failure, Err: fmt.Errorf("http %d: api errors %v", status, payload.Errors)}
	}

	return Result{Outcome: Success, Events: extractEvents(payload.Result)}
}

// extractEvents handles the result shapes seen across API versions: a bare
// list, or a list nested under one of a few known keys.
func extractEvents(result json.RawMessage) []types.RawEvent {
	if len(result) == 0 {
		return nil
	}

	var list []types.RawEvent
	if err := json.Unmarshal(result, &list); err == nil {
		return list
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(result, &obj); err != nil {
		return nil
	}
	for _, key := range []string{"security_events", "events", "result"} {
		nested, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(nested, &list); err == nil && list != nil {
			return list
		}
	}
	return nil
}
