package plausible

import (
	"strings"

	"plausible-bridge/internal/model"
)

// Wire types for the Plugins API. Requests reuse model.GoalRequest, which
// already encodes as {"goal_type": ..., "goal": {...}}.

type goalBulkRequest struct {
	Goals []model.GoalRequest `json:"goals"`
}

type goalListResponse struct {
	Goals []goalEnvelope `json:"goals"`
}

type goalEnvelope struct {
	GoalType string   `json:"goal_type"`
	Goal     wireGoal `json:"goal"`
}

type wireGoal struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	EventName   string `json:"event_name,omitempty"`
	Path        string `json:"path,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

func (e goalEnvelope) toModel() (model.Goal, error) {
	kind, err := model.ParseGoalType(e.GoalType)
	if err != nil {
		return model.Goal{}, err
	}
	return model.Goal{
		ID:          e.Goal.ID,
		DisplayName: e.Goal.DisplayName,
		Kind:        kind,
		EventName:   e.Goal.EventName,
		Path:        e.Goal.Path,
		Currency:    e.Goal.Currency,
	}, nil
}

type funnelCreateRequest struct {
	Funnel model.FunnelRequest `json:"funnel"`
}

type funnelResponse struct {
	Funnel struct {
		ID    int64          `json:"id"`
		Name  string         `json:"name"`
		Steps []goalEnvelope `json:"steps"`
	} `json:"funnel"`
}

type customPropBulkRequest struct {
	CustomProps []customPropEntry `json:"custom_props"`
}

type customPropEntry struct {
	CustomProp customProp `json:"custom_prop"`
}

type customProp struct {
	Key string `json:"key"`
}

type sharedLinkRequest struct {
	SharedLink sharedLinkName `json:"shared_link"`
}

type sharedLinkName struct {
	Name string `json:"name"`
}

type sharedLinkResponse struct {
	SharedLink model.SharedLink `json:"shared_link"`
}

// errorResponse covers both {"error": "..."} and {"errors": [{"detail": "..."}]}.
type errorResponse struct {
	Error  string `json:"error"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	details := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.Detail != "" {
			details = append(details, d.Detail)
		}
	}
	return strings.Join(details, "; ")
}
