// Package subscription holds the optional change-notification renewal
// scheduler. It exists as a separate, default-off component: without it,
// subscriptions expire within their bounded lifetime and the webhook simply
// goes quiet, which is the platform's documented behavior for short-lived
// subscriptions.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deskrelay/deskrelay/internal/request"
)

// renewGateway is the slice of the conversation gateway the renewer needs.
type renewGateway interface {
	RenewSubscription(ctx context.Context, subscriptionID string, ttl time.Duration) error
}

// requestLister enumerates tracked requests.
type requestLister interface {
	List() []request.SupportRequest
}

// Renewer periodically extends the subscription of every live request.
type Renewer struct {
	logger   *slog.Logger
	store    requestLister
	gateway  renewGateway
	ttl      time.Duration
	interval time.Duration
	cron     *cron.Cron
}

// NewRenewer creates a Renewer. Start must be called to arm the schedule.
func NewRenewer(log *slog.Logger, store requestLister, gateway renewGateway, ttl, interval time.Duration) *Renewer {
	if log == nil {
		log = slog.Default()
	}
	return &Renewer{
		logger:   log.With(slog.String("component", "subscription_renewer")),
		store:    store,
		gateway:  gateway,
		ttl:      ttl,
		interval: interval,
		cron:     cron.New(),
	}
}

// Start arms the renewal schedule.
func (r *Renewer) Start() error {
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.renewAll)
	if err != nil {
		return fmt.Errorf("schedule renewal: %w", err)
	}
	r.cron.Start()
	r.logger.Info("subscription renewal enabled", slog.Duration("interval", r.interval), slog.Duration("ttl", r.ttl))
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (r *Renewer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Renewer) renewAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var renewed, failed int
	for _, req := range r.store.List() {
		if req.SubscriptionID == "" || req.Status == request.StatusAborted {
			continue
		}
		if err := r.gateway.RenewSubscription(ctx, req.SubscriptionID, r.ttl); err != nil {
			failed++
			r.logger.Warn("subscription renewal failed",
				slog.String("request_id", req.ID),
				slog.String("subscription_id", req.SubscriptionID),
				slog.Any("error", err))
			continue
		}
		renewed++
	}
	if renewed > 0 || failed > 0 {
		r.logger.Info("subscription renewal pass", slog.Int("renewed", renewed), slog.Int("failed", failed))
	}
}
