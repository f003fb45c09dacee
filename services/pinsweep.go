package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// StartPinSweeper schedules a recurring job that finishes deferred artifact
// distribution and re-pins published artifacts whose pins were dropped on the
// IPFS node. The schedule uses cron syntax, for example "@hourly". The
// returned scheduler runs until Stop is called.
func (r *Registry) StartPinSweeper(schedule string) (*cron.Cron, error) {
	if r.config.Pinner == nil {
		return nil, errors.New("pin sweeper requires an IPFS client")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		r.SweepPins(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	r.log.Info("pin sweeper started", "schedule", schedule)
	return c, nil
}

// SweepPins walks every published artifact, finishing distribution for
// artifacts whose IPFS add was deferred at publish time and re-pinning
// those the node has since dropped.
func (r *Registry) SweepPins(ctx context.Context) {
	if r.config.Pinner == nil {
		return
	}

	releases, err := r.config.Store.ListReleases("", true)
	if err != nil {
		r.log.Warn("pin sweep could not list releases", "err", err)
		return
	}

	var checked, restored, completed int
	for _, rel := range releases {
		var dirty bool
		for i := range rel.Artifacts {
			art := &rel.Artifacts[i]
			if art.StoreOnly {
				continue
			}

			if art.CID == "" {
				if err := r.pinArtifact(ctx, rel, art); err != nil {
					pinFailures.Inc()
					r.log.Warn("deferred distribution still failing", "filename", art.Filename, "release", rel.Version, "err", err)
					continue
				}
				pinsCompleted.Inc()
				completed++
				dirty = true
				r.log.Info("deferred distribution completed", "cid", art.CID, "filename", art.Filename, "release", rel.Version)
				continue
			}

			checked++
			pinned, err := r.config.Pinner.IsPinned(ctx, art.CID)
			if err != nil {
				r.log.Warn("pin status check failed", "cid", art.CID, "err", err)
				continue
			}
			if pinned {
				continue
			}

			if err := r.config.Pinner.PinAdd(ctx, art.CID); err != nil {
				pinFailures.Inc()
				r.log.Warn("could not restore pin", "cid", art.CID, "filename", art.Filename, "err", err)
				continue
			}
			pinsRestored.Inc()
			restored++
			r.log.Info("restored pin", "cid", art.CID, "filename", art.Filename, "release", rel.Version)
		}

		if dirty {
			if err := r.config.Store.SaveRelease(rel); err != nil {
				r.log.Warn("could not persist completed distribution", "release", rel.Version, "err", err)
			}
		}
	}

	if checked > 0 || completed > 0 {
		r.log.Debug("pin sweep complete", "checked", checked, "restored", restored, "completed", completed)
	}
}
