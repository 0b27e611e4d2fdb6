// Package provisioning keeps the remote analytics resources of a site in line
// with its settings. Every settings save hands the (old, new) snapshot pair
// to Reconciler.OnSettingsChanged, which creates goals, the commerce funnel,
// custom properties and the shared dashboard link, and deletes goals of
// features that were switched off.
//
// Remote failures never fail the settings save. They are logged, recorded
// in the returned Report and not retried; saving the settings again retries.
package provisioning

import (
	"context"
	"errors"
	"log/slog"

	"plausible-bridge/internal/catalog"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/plausible"
	"plausible-bridge/internal/reconcile"
	"plausible-bridge/internal/settings"
)

// ClientFactory returns an API client authenticated with token.
// Returning an error matching model.ErrMissingPrerequisite disables the pass.
type ClientFactory func(token string) (plausible.Client, error)

// Commerce reports whether the shop integration is active and its currency.
type Commerce interface {
	Active(ctx context.Context) bool
	Currency(ctx context.Context) string
}

// Operation names used in reports and logs.
const (
	OpValidateToken    = "validate_token"
	OpSharedLink       = "create_shared_link"
	OpCreateGoals      = "create_goals"
	OpCommerceFunnel   = "create_commerce_funnel"
	OpDeleteGoals      = "delete_goals"
	OpDeleteCommerce   = "delete_commerce_goals"
	OpCustomProperties = "enable_custom_properties"
	OpGoalCache        = "goal_cache"
)

// Reconciler provisions remote resources on settings changes.
type Reconciler struct {
	store    settings.Store
	clients  ClientFactory
	commerce Commerce
	logger   *slog.Logger
}

// New creates a Reconciler. commerce may be nil when no shop is connected.
func New(store settings.Store, clients ClientFactory, commerce Commerce, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		clients:  clients,
		commerce: commerce,
		logger:   logger,
	}
}

// pass carries the state of one OnSettingsChanged call.
type pass struct {
	client plausible.Client
	prev   settings.Settings
	next   settings.Settings
	diff   *reconcile.FeatureDiff
	cache  settings.GoalIDCache
	dirty  bool
	report *Report
}

// OnSettingsChanged reconciles remote resources with the new settings.
// Creation runs before deletion; custom properties come last. Calling it
// again with the same pair issues no deletes and only get-or-create calls.
func (r *Reconciler) OnSettingsChanged(ctx context.Context, prev, next settings.Settings) *Report {
	report := &Report{}

	if next.APIToken == "" {
		r.skip(ctx, report, OpValidateToken, model.NewMissingPrerequisiteError("API token"))
		return report
	}

	client, err := r.clients(next.APIToken)
	if err != nil {
		r.skip(ctx, report, OpValidateToken, err)
		return report
	}

	if _, err := client.ValidateToken(ctx); err != nil {
		r.skip(ctx, report, OpValidateToken, err)
		return report
	}

	cache, err := r.store.GoalIDs(ctx)
	if err != nil {
		r.skip(ctx, report, OpGoalCache, err)
		return report
	}

	p := &pass{
		client: client,
		prev:   prev,
		next:   next,
		diff:   reconcile.DiffFeatures(prev.EnhancedMeasurements, next.EnhancedMeasurements),
		cache:  cache,
		report: report,
	}

	r.createSharedLink(ctx, p)
	r.createGoals(ctx, p)
	r.createCommerceFunnel(ctx, p)
	if len(p.diff.Disabled) > 0 {
		r.deleteGoals(ctx, p, OpDeleteGoals, reconcile.MatchDisabledFeatures(p.diff.Disabled))
	}
	if p.diff.WasDisabled(catalog.FeatureRevenue) {
		r.deleteGoals(ctx, p, OpDeleteCommerce, reconcile.MatchCommerceGoals())
	}
	r.saveCache(ctx, p)
	r.enableCustomProperties(ctx, p)

	r.logger.Info("provisioning finished",
		slog.Int("goals_created", len(report.GoalsCreated)),
		slog.Int("goals_deleted", len(report.GoalsDeleted)),
		slog.Int("errors", len(report.Errors)),
	)
	return report
}

func (r *Reconciler) skip(ctx context.Context, report *Report, op string, err error) {
	report.Skipped = true
	report.fail(op, err)

	level := slog.LevelWarn
	if errors.Is(err, model.ErrRemoteUnavailable) {
		level = slog.LevelError
	}
	r.logger.Log(ctx, level, "provisioning skipped",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

func (r *Reconciler) fail(p *pass, op string, err error) {
	p.report.fail(op, err)
	r.logger.Error("provisioning operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

func (r *Reconciler) commerceActive(ctx context.Context) bool {
	return r.commerce != nil && r.commerce.Active(ctx)
}

// createSharedLink requests the dashboard link when the dashboard was just
// enabled or no link is stored yet. The store is consulted as well as the
// snapshot, so a retried pass does not request the link twice.
func (r *Reconciler) createSharedLink(ctx context.Context, p *pass) {
	if !p.next.EnableAnalyticsDashboard {
		return
	}
	if p.prev.EnableAnalyticsDashboard && r.hasSharedLink(ctx, p.next) {
		return
	}

	link, err := p.client.CreateSharedLink(ctx, plausible.SharedLinkName)
	if err != nil {
		r.fail(p, OpSharedLink, err)
		return
	}
	if _, _, err := r.store.Update(ctx, func(s *settings.Settings) { s.SharedLink = link.Href }); err != nil {
		r.fail(p, OpSharedLink, err)
		return
	}
	p.report.SharedLink = link.Href
	r.logger.Info("shared link created", slog.String("href", link.Href))
}

func (r *Reconciler) hasSharedLink(ctx context.Context, next settings.Settings) bool {
	if next.SharedLink != "" {
		return true
	}
	stored, err := r.store.Get(ctx)
	if err != nil {
		r.logger.Warn("reading stored shared link failed", slog.String("error", err.Error()))
		return false
	}
	return stored.SharedLink != ""
}

// createGoals submits one bulk get-or-create for every enabled measurement
// that has a goal.
func (r *Reconciler) createGoals(ctx context.Context, p *pass) {
	var goals []model.GoalRequest
	for _, f := range p.next.EnhancedMeasurements {
		if def, ok := catalog.MeasurementGoal(f); ok {
			goals = append(goals, def.Request(""))
		}
	}
	r.bulkCreate(ctx, p, OpCreateGoals, goals)
}

func (r *Reconciler) bulkCreate(ctx context.Context, p *pass, op string, goals []model.GoalRequest) {
	if len(goals) == 0 {
		return
	}

	created, err := p.client.CreateGoals(ctx, goals)
	if err != nil {
		r.fail(p, op, err)
		return
	}
	if len(created) < len(goals) {
		p.report.warn(op, model.ErrPartialBulk)
		r.logger.Warn("bulk goal creation returned fewer goals than requested",
			slog.Int("requested", len(goals)),
			slog.Int("returned", len(created)),
		)
	}
	r.merge(p, created)
}

func (r *Reconciler) merge(p *pass, goals []model.Goal) {
	reconcile.MergeGoals(p.cache, goals)
	for _, g := range goals {
		if g.ID != 0 {
			p.report.GoalsCreated = append(p.report.GoalsCreated, g.ID)
			p.dirty = true
		}
	}
}

// createCommerceFunnel provisions the purchase funnel plus the goals that
// are tracked outside of it.
func (r *Reconciler) createCommerceFunnel(ctx context.Context, p *pass) {
	if !p.next.Enabled(catalog.FeatureRevenue) || !r.commerceActive(ctx) {
		return
	}

	r.bulkCreate(ctx, p, OpCommerceFunnel, catalog.StandaloneCommerceGoals())

	currency := r.commerce.Currency(ctx)
	if currency == "" {
		r.fail(p, OpCommerceFunnel, model.NewMissingPrerequisiteError("store currency"))
		return
	}

	funnel, err := p.client.CreateFunnel(ctx, catalog.PurchaseFunnel(currency))
	if err != nil {
		r.fail(p, OpCommerceFunnel, err)
		return
	}
	p.report.FunnelID = funnel.ID
	r.merge(p, funnel.Steps)
}

// deleteGoals deletes every cached goal the matcher selects. Only goals whose
// delete call succeeded leave the cache.
func (r *Reconciler) deleteGoals(ctx context.Context, p *pass, op string, match reconcile.NameMatcher) {
	for _, d := range reconcile.PlanGoalDeletions(p.cache, match) {
		if err := p.client.DeleteGoal(ctx, d.ID); err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				r.fail(p, op, err)
				continue
			}
			// Already gone remotely; forget it locally.
		}
		delete(p.cache, d.ID)
		p.dirty = true
		p.report.GoalsDeleted = append(p.report.GoalsDeleted, d.ID)
		r.logger.Info("goal deleted", slog.Int64("id", d.ID), slog.String("name", d.Name))
	}
}

func (r *Reconciler) saveCache(ctx context.Context, p *pass) {
	if !p.dirty {
		return
	}
	if err := r.store.SaveGoalIDs(ctx, p.cache); err != nil {
		r.fail(p, OpGoalCache, err)
	}
}

// enableCustomProperties enables the union of property keys of the active
// features in one request.
func (r *Reconciler) enableCustomProperties(ctx context.Context, p *pass) {
	var lists [][]string
	if p.next.Enabled(catalog.FeaturePageviewProps) {
		lists = append(lists, catalog.PageviewProperties)
	}
	if p.next.Enabled(catalog.FeatureRevenue) && r.commerceActive(ctx) {
		lists = append(lists, catalog.CommerceProperties)
	}
	if p.next.Enabled(catalog.FeatureSearch) {
		lists = append(lists, catalog.SearchProperties)
	}

	keys := reconcile.UnionKeys(lists...)
	if len(keys) == 0 {
		return
	}
	if err := p.client.EnableCustomProperties(ctx, keys); err != nil {
		r.fail(p, OpCustomProperties, err)
		return
	}
	p.report.CustomProperties = keys
}
