package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-fermax-cloud/cloud"
	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const refreshKey = "refresh"

// CycleTimeout bounds one refresh cycle, listing retries included.
const CycleTimeout = 5 * time.Minute

type deviceResult struct {
	info cloud.DeviceInfo
	caps cloud.Capabilities
	err  error
}

// Refresh runs one refresh cycle. Callers that overlap an in-flight cycle wait
// for it and share its result instead of starting another. The cycle is
// detached from ctx: a caller that gives up stops waiting but the cycle runs
// on for everyone else.
func (c *Coordinator) Refresh(ctx context.Context) error {
	resultCh := c.cycles.DoChan(refreshKey, func() (any, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CycleTimeout)
		defer cancel()
		return nil, c.runCycle(cycleCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-resultCh:
		if result.Shared {
			c.logger.Debug().Msg("joined in-flight refresh cycle")
		}
		return result.Err
	}
}

func (c *Coordinator) runCycle(ctx context.Context) (err error) {
	seq := c.seq.Add(1)
	cycleID := uuid.NewString()
	logger := c.logger.With().Str("cycle_id", cycleID).Logger()
	start := c.nowFunc()

	var fresh, stale int
	defer func() {
		c.metrics.ObserveRefreshCycle(c.nowFunc().Sub(start), fresh, stale, err)
		c.recordOutcome(seq, cycleID, err)
	}()

	logger.Debug().Msg("refresh cycle started")
	pairings, err := c.listPairings(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("error listing pairings, keeping previous data")
		return ferrors.Wrapf(err, "[coordinator Refresh] %w: listing pairings", ferrors.ErrUpdateFailed)
	}

	targets := c.targets(logger, pairings)
	results := c.fanOut(ctx, logger, targets)

	var merged Snapshot
	merged, fresh, stale = c.merge(logger, targets, results)
	if len(merged) == 0 {
		logger.Error().Int("pairings", len(pairings)).Msg("no devices could be updated, keeping previous data")
		return ferrors.Wrapf(ferrors.ErrNoDevicesUpdated, "[coordinator Refresh] %w", ferrors.ErrUpdateFailed)
	}

	if !c.publish(seq, merged) {
		logger.Debug().Msg("a newer cycle already published, discarding result")
		return nil
	}
	logger.Info().
		Int("fresh", fresh).
		Int("stale", stale).
		Dur("elapsed", c.nowFunc().Sub(start)).
		Msg("refresh cycle published")
	return nil
}

func (c *Coordinator) listPairings(ctx context.Context) ([]cloud.Pairing, error) {
	if c.backoff == nil {
		return c.client.GetPairings(ctx)
	}
	return cloud.RetryWithBackoff(ctx, *c.backoff, c.client.GetPairings)
}

func (c *Coordinator) getDevice(ctx context.Context, deviceID string) (cloud.DeviceInfo, error) {
	if c.backoff == nil {
		return c.client.GetDevice(ctx, deviceID)
	}
	return cloud.RetryWithBackoff(ctx, *c.backoff, func(ctx context.Context) (cloud.DeviceInfo, error) {
		return c.client.GetDevice(ctx, deviceID)
	})
}

// targets keeps the pairings that name a device, first occurrence wins.
func (c *Coordinator) targets(logger zerolog.Logger, pairings []cloud.Pairing) []cloud.Pairing {
	seen := make(map[string]bool, len(pairings))
	targets := make([]cloud.Pairing, 0, len(pairings))
	for _, p := range pairings {
		if p.DeviceID == "" {
			logger.Warn().Str("tag", p.Tag).Msg("pairing without device id, skipping")
			continue
		}
		if seen[p.DeviceID] {
			continue
		}
		seen[p.DeviceID] = true
		targets = append(targets, p)
	}
	return targets
}

// fanOut fetches detail and services for every target. Tasks never return an
// error so one device cannot cancel the others; the cycle waits for all of them.
func (c *Coordinator) fanOut(ctx context.Context, logger zerolog.Logger, targets []cloud.Pairing) []deviceResult {
	results := make([]deviceResult, len(targets))

	var g errgroup.Group
	g.SetLimit(c.maxParallel)
	for i, p := range targets {
		g.Go(func() error {
			results[i].info, results[i].err = c.getDevice(ctx, p.DeviceID)
			if results[i].err != nil {
				logger.Warn().Err(results[i].err).Str("device_id", p.DeviceID).Msg("error fetching device")
			}
			return nil
		})
		g.Go(func() error {
			results[i].caps = c.client.GetServices(ctx, p.DeviceID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// merge builds the next snapshot: fresh data where the fetch succeeded, the
// previously published entry where it failed, nothing for unpaired devices.
func (c *Coordinator) merge(logger zerolog.Logger, targets []cloud.Pairing, results []deviceResult) (Snapshot, int, int) {
	previous := c.current()
	now := c.nowFunc()

	merged := make(Snapshot, len(targets))
	var fresh, stale int
	for i, p := range targets {
		r := results[i]
		if r.err == nil {
			merged[p.DeviceID] = DeviceSnapshot{
				DeviceID:     p.DeviceID,
				Pairing:      p,
				Info:         r.info,
				Capabilities: r.caps,
				UpdatedAt:    now,
			}
			fresh++
			continue
		}

		old, ok := previous[p.DeviceID]
		if !ok {
			logger.Warn().Str("device_id", p.DeviceID).Msg("device has no previous data, leaving it out")
			continue
		}
		logger.Warn().
			Str("device_id", p.DeviceID).
			Time("updated_at", old.UpdatedAt).
			Msg("keeping previous data for device")
		merged[p.DeviceID] = old
		stale++
	}

	for id := range previous {
		if _, ok := merged[id]; !ok && !paired(targets, id) {
			logger.Info().Str("device_id", id).Msg("device no longer paired, dropping")
		}
	}
	return merged, fresh, stale
}

func paired(targets []cloud.Pairing, deviceID string) bool {
	for _, p := range targets {
		if p.DeviceID == deviceID {
			return true
		}
	}
	return false
}
