package plausible

import (
	"context"

	"plausible-bridge/internal/model"
)

// Mock implements Client for testing. Unset functions succeed with empty results.
type Mock struct {
	ValidateTokenFunc          func(ctx context.Context) (*model.Capabilities, error)
	CreateGoalsFunc            func(ctx context.Context, goals []model.GoalRequest) ([]model.Goal, error)
	DeleteGoalFunc             func(ctx context.Context, id int64) error
	CreateFunnelFunc           func(ctx context.Context, req model.FunnelRequest) (*model.Funnel, error)
	EnableCustomPropertiesFunc func(ctx context.Context, keys []string) error
	CreateSharedLinkFunc       func(ctx context.Context, name string) (*model.SharedLink, error)
}

var _ Client = (*Mock)(nil)

func (m *Mock) ValidateToken(ctx context.Context) (*model.Capabilities, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx)
	}
	return &model.Capabilities{Authorized: true}, nil
}

func (m *Mock) CreateGoals(ctx context.Context, goals []model.GoalRequest) ([]model.Goal, error) {
	if m.CreateGoalsFunc != nil {
		return m.CreateGoalsFunc(ctx, goals)
	}
	return nil, nil
}

func (m *Mock) DeleteGoal(ctx context.Context, id int64) error {
	if m.DeleteGoalFunc != nil {
		return m.DeleteGoalFunc(ctx, id)
	}
	return nil
}

func (m *Mock) CreateFunnel(ctx context.Context, req model.FunnelRequest) (*model.Funnel, error) {
	if m.CreateFunnelFunc != nil {
		return m.CreateFunnelFunc(ctx, req)
	}
	return &model.Funnel{Name: req.Name}, nil
}

func (m *Mock) EnableCustomProperties(ctx context.Context, keys []string) error {
	if m.EnableCustomPropertiesFunc != nil {
		return m.EnableCustomPropertiesFunc(ctx, keys)
	}
	return nil
}

func (m *Mock) CreateSharedLink(ctx context.Context, name string) (*model.SharedLink, error) {
	if m.CreateSharedLinkFunc != nil {
		return m.CreateSharedLinkFunc(ctx, name)
	}
	return &model.SharedLink{Name: name}, nil
}
