package sweep

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
)

// RotationStats summarizes one rotation sweep run.
type RotationStats struct {
	Due     int
	Rotated int
	Skipped int
	Failed  int
}

// RunRotation advances the active video for every due schedule. A schedule
// is claimed with a single conditional update before any work happens, so
// concurrent sweeps never rotate the same schedule twice.
func (s *Sweeper) RunRotation(ctx context.Context) (RotationStats, error) {
	log := logger.FromContext(ctx)
	now := s.now()

	schedules, err := s.Queries.ListDueSchedules(ctx, now)
	if err != nil {
		return RotationStats{}, fmt.Errorf("list due schedules: %w", err)
	}

	stats := RotationStats{Due: len(schedules)}
	for _, sched := range schedules {
		rotated, err := s.rotate(ctx, sched, now)
		if err != nil {
			stats.Failed++
			metrics.SweepItemsTotal.WithLabelValues("video_rotation", "error").Inc()
			log.Error("rotation failed",
				"schedule_id", sched.ID, "content_id", sched.ContentID, "error", err)
			continue
		}
		if rotated {
			stats.Rotated++
			metrics.VideoRotationsTotal.WithLabelValues(string(sched.Rule)).Inc()
		} else {
			stats.Skipped++
		}
	}

	metrics.SweepLastRunTimestamp.WithLabelValues("video_rotation").Set(float64(now.Unix()))
	log.Info("rotation sweep finished",
		"due", stats.Due, "rotated", stats.Rotated, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (s *Sweeper) rotate(ctx context.Context, sched db.RotationSchedule, now time.Time) (bool, error) {
	log := logger.FromContext(ctx)

	next := NextRotationTime(sched, now)
	claimed, err := s.Queries.ClaimSchedule(ctx, sched.ID, now, next)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	if !claimed {
		return false, nil
	}

	videos, err := s.Queries.ListVideosForContent(ctx, sched.ContentID)
	if err != nil {
		return false, fmt.Errorf("list videos: %w", err)
	}
	if len(videos) == 0 {
		return false, nil
	}

	active, err := s.Queries.CountActiveVideos(ctx, sched.ContentID)
	if err != nil {
		return false, fmt.Errorf("count active videos: %w", err)
	}
	if active > 1 {
		// Should never happen; the activation statement below repairs it.
		log.Warn("multiple active videos detected",
			"content_id", sched.ContentID, "active", active)
	}

	currentID := int64(0)
	for _, v := range videos {
		if v.IsActive {
			currentID = v.ID
			break
		}
	}

	nextID, ok := s.pickNext(sched, videos, currentID, now)
	if !ok {
		return false, nil
	}
	if nextID == currentID && active == 1 {
		return false, nil
	}

	if err := s.Queries.SetActiveVideo(ctx, sched.ContentID, nextID); err != nil {
		return false, fmt.Errorf("set active video: %w", err)
	}

	log.Info("video rotated",
		"content_id", sched.ContentID,
		"rule", string(sched.Rule),
		"previous_video_id", currentID,
		"video_id", nextID)
	return true, nil
}

// NextRotationTime computes when the schedule should fire again. Nil means
// the schedule has nothing left to do and stops firing.
func NextRotationTime(sched db.RotationSchedule, now time.Time) *time.Time {
	switch sched.Rule {
	case db.RotationRuleDated:
		var next *time.Time
		for _, d := range sched.Dates {
			if !d.On.After(now) {
				continue
			}
			if next == nil || d.On.Before(*next) {
				on := d.On
				next = &on
			}
		}
		return next

	default:
		if sched.Interval <= 0 {
			return nil
		}
		t := now.Add(sched.Interval)
		return &t
	}
}

// pickNext selects the video that should become active. Candidate order is
// the schedule's explicit order first, then ascending id for videos the
// schedule does not mention.
func (s *Sweeper) pickNext(sched db.RotationSchedule, videos []db.Video, currentID int64, now time.Time) (int64, bool) {
	switch sched.Rule {
	case db.RotationRuleDated:
		return pickDated(sched, videos, now)
	case db.RotationRuleRandom:
		return s.pickRandom(sched, videos, currentID)
	default:
		return pickOrdered(sched, videos, currentID)
	}
}

// orderedCandidates returns the video ids in rotation order.
func orderedCandidates(sched db.RotationSchedule, videos []db.Video) []int64 {
	byID := make(map[int64]bool, len(videos))
	for _, v := range videos {
		byID[v.ID] = true
	}

	var out []int64
	seen := make(map[int64]bool, len(videos))
	for _, id := range sched.VideoOrder {
		if byID[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}

	rest := make([]int64, 0, len(videos))
	for _, v := range videos {
		if !seen[v.ID] {
			rest = append(rest, v.ID)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

func pickOrdered(sched db.RotationSchedule, videos []db.Video, currentID int64) (int64, bool) {
	candidates := orderedCandidates(sched, videos)
	if len(candidates) == 0 {
		return 0, false
	}

	for i, id := range candidates {
		if id == currentID {
			return candidates[(i+1)%len(candidates)], true
		}
	}
	// No current active video, start from the top.
	return candidates[0], true
}

func pickDated(sched db.RotationSchedule, videos []db.Video, now time.Time) (int64, bool) {
	byID := make(map[int64]bool, len(videos))
	for _, v := range videos {
		byID[v.ID] = true
	}

	var (
		best   time.Time
		bestID int64
		found  bool
	)
	for _, d := range sched.Dates {
		if d.On.After(now) || !byID[d.VideoID] {
			continue
		}
		if !found || d.On.After(best) {
			best = d.On
			bestID = d.VideoID
			found = true
		}
	}
	return bestID, found
}

func (s *Sweeper) pickRandom(sched db.RotationSchedule, videos []db.Video, currentID int64) (int64, bool) {
	candidates := orderedCandidates(sched, videos)
	if len(candidates) == 0 {
		return 0, false
	}

	// With more than one choice the current video is excluded so a
	// rotation always changes something.
	if len(candidates) > 1 {
		filtered := candidates[:0]
		for _, id := range candidates {
			if id != currentID {
				filtered = append(filtered, id)
			}
		}
		candidates = filtered
	}

	return candidates[s.intn(len(candidates))], true
}
