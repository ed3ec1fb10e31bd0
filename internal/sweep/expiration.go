package sweep

import (
	"context"
	"fmt"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/notify"
)

// ExpirationStats summarizes one warning sweep run.
type ExpirationStats struct {
	Scanned  int
	Notified int
	Failed   int
}

// RunExpirationWarnings notifies owners of projects that expire within the
// lookahead window. A project warned inside the cooldown window is excluded
// by the query, so repeated sweeps do not spam.
func (s *Sweeper) RunExpirationWarnings(ctx context.Context) (ExpirationStats, error) {
	log := logger.FromContext(ctx)
	now := s.now()

	projects, err := s.Queries.ListProjectsExpiringWithin(ctx, now, s.Lookahead, s.Cooldown)
	if err != nil {
		return ExpirationStats{}, fmt.Errorf("list expiring projects: %w", err)
	}

	stats := ExpirationStats{Scanned: len(projects)}
	for _, p := range projects {
		if err := s.warnProject(ctx, p); err != nil {
			stats.Failed++
			metrics.SweepItemsTotal.WithLabelValues("expiration_warning", "error").Inc()
			log.Error("expiration warning failed", "project_id", p.ID, "error", err)
			continue
		}
		stats.Notified++
		metrics.SweepItemsTotal.WithLabelValues("expiration_warning", "success").Inc()
	}

	metrics.SweepLastRunTimestamp.WithLabelValues("expiration_warning").Set(float64(now.Unix()))
	log.Info("expiration warning sweep finished",
		"scanned", stats.Scanned, "notified", stats.Notified, "failed", stats.Failed)
	return stats, nil
}

func (s *Sweeper) warnProject(ctx context.Context, p db.Project) error {
	if p.ExpiresAt == nil {
		return fmt.Errorf("project %d has no expiry", p.ID)
	}

	subject, body, err := notify.RenderExpirationWarning(p.Name, *p.ExpiresAt, s.now())
	if err != nil {
		return err
	}

	n, err := s.Queries.CreateNotification(ctx, db.CreateNotificationParams{
		ProjectID:  p.ID,
		Kind:       db.NotificationExpirationWarning,
		Subject:    subject,
		Body:       body,
		EmailTo:    p.ContactEmail,
		WebhookURL: p.WebhookURL,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	// Mark before dispatch: a dispatch failure retries on the
	// notification task, while the cooldown keeps the sweep from
	// creating duplicates meanwhile.
	if err := s.Queries.MarkProjectNotified(ctx, p.ID, s.now()); err != nil {
		return fmt.Errorf("mark project notified: %w", err)
	}

	if err := s.Enqueue.EnqueueNotification(ctx, n.ID); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// DeactivationStats summarizes one expired-project sweep run.
type DeactivationStats struct {
	Scanned     int
	Deactivated int
	Contents    int64
	Failed      int
}

// RunDeactivation expires overdue projects and deactivates their AR
// content. ExpireProject is guarded on current status, so two concurrent
// runs cascade each project at most once.
func (s *Sweeper) RunDeactivation(ctx context.Context) (DeactivationStats, error) {
	log := logger.FromContext(ctx)
	now := s.now()

	projects, err := s.Queries.ListExpiredActiveProjects(ctx, now)
	if err != nil {
		return DeactivationStats{}, fmt.Errorf("list expired projects: %w", err)
	}

	stats := DeactivationStats{Scanned: len(projects)}
	for _, p := range projects {
		expired, err := s.Queries.ExpireProject(ctx, p.ID)
		if err != nil {
			stats.Failed++
			metrics.SweepItemsTotal.WithLabelValues("expired_deactivation", "error").Inc()
			log.Error("expire project failed", "project_id", p.ID, "error", err)
			continue
		}
		if !expired {
			// Another worker got here first.
			continue
		}

		count, err := s.Queries.DeactivateProjectContents(ctx, p.ID)
		if err != nil {
			stats.Failed++
			metrics.SweepItemsTotal.WithLabelValues("expired_deactivation", "error").Inc()
			log.Error("deactivate contents failed", "project_id", p.ID, "error", err)
			continue
		}

		stats.Deactivated++
		stats.Contents += count
		metrics.SweepItemsTotal.WithLabelValues("expired_deactivation", "success").Inc()
		log.Info("project expired", "project_id", p.ID, "contents_deactivated", count)

		if err := s.notifyExpired(ctx, p); err != nil {
			// Deactivation stands even when the notice fails.
			log.Error("expired notice failed", "project_id", p.ID, "error", err)
		}
	}

	metrics.SweepLastRunTimestamp.WithLabelValues("expired_deactivation").Set(float64(now.Unix()))
	log.Info("deactivation sweep finished",
		"scanned", stats.Scanned, "deactivated", stats.Deactivated, "contents", stats.Contents)
	return stats, nil
}

func (s *Sweeper) notifyExpired(ctx context.Context, p db.Project) error {
	if p.ExpiresAt == nil {
		return fmt.Errorf("project %d has no expiry", p.ID)
	}

	subject, body, err := notify.RenderProjectExpired(p.Name, *p.ExpiresAt)
	if err != nil {
		return err
	}

	n, err := s.Queries.CreateNotification(ctx, db.CreateNotificationParams{
		ProjectID:  p.ID,
		Kind:       db.NotificationProjectExpired,
		Subject:    subject,
		Body:       body,
		EmailTo:    p.ContactEmail,
		WebhookURL: p.WebhookURL,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return s.Enqueue.EnqueueNotification(ctx, n.ID)
}
