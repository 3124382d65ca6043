// Package seed creates one achievement per session of an event, plus the
// event's CV achievement, from an external session feed.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/logging"
	"github.com/dmitrijs2005/achievements/internal/server/config"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Creator stores new achievements. services.AchievementService implements it.
type Creator interface {
	Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error)
}

// Report summarises one run. Achievements that already existed count as
// skipped.
type Report struct {
	RunID   string
	Created int
	Skipped int
	Failed  int
}

// Importer turns the session feed of an event into achievements.
type Importer struct {
	creator     Creator
	source      SessionSource
	images      ImageChecker
	locker      Locker
	logger      logging.Logger
	event       string
	imageBase   string
	validity    time.Duration
	concurrency int
	now         func() time.Time
}

// NewImporter wires an importer. images may be nil to skip the image check
// and locker may be nil when a single seeder runs.
func NewImporter(cfg *config.Config, creator Creator, source SessionSource, images ImageChecker,
	locker Locker, logger logging.Logger) *Importer {

	if locker == nil {
		locker = NoopLocker{}
	}
	return &Importer{
		creator:     creator,
		source:      source,
		images:      images,
		locker:      locker,
		logger:      logger.With("module", "seed"),
		event:       cfg.EventID,
		imageBase:   strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		validity:    cfg.SeedValidity,
		concurrency: cfg.SeedConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LockKey names the lock serialising runs for event.
func LockKey(event string) string {
	return "achievements:seed:" + event
}

// Run imports every session of the event and then the CV achievement. It
// returns only after every create has finished. ErrLocked means another
// process is seeding and nothing was done.
func (im *Importer) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString()}
	logger := im.logger.With("run", rep.RunID, "event", im.event)

	if im.event == "" {
		return rep, fmt.Errorf("%w: no event configured", common.ErrorValidation)
	}

	release, err := im.locker.Acquire(ctx, LockKey(im.event))
	if err != nil {
		if errors.Is(err, ErrLocked) {
			logger.Info(ctx, "seeding already running elsewhere")
		}
		return rep, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "error releasing seed lock", "err", err)
		}
	}()

	sessions, err := im.source.List(ctx, im.event)
	if err != nil {
		logger.Error(ctx, "error listing sessions", "err", err)
		return rep, err
	}
	logger.Debug(ctx, "got sessions", "count", len(sessions))

	now := im.now()
	var created, skipped, failed atomic.Int64
	tally := func(a *models.Achievement) {
		switch im.create(ctx, logger, a) {
		case outcomeCreated:
			created.Add(1)
		case outcomeSkipped:
			skipped.Add(1)
		default:
			failed.Add(1)
		}
	}

	var g errgroup.Group
	g.SetLimit(max(im.concurrency, 1))
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			tally(im.sessionAchievement(s, now))
			return nil
		})
	}
	_ = g.Wait()

	logger.Info(ctx, "session achievements created", "created", created.Load(),
		"skipped", skipped.Load(), "failed", failed.Load())

	if ctx.Err() == nil {
		tally(im.cvAchievement(now))
	}

	rep.Created = int(created.Load())
	rep.Skipped = int(skipped.Load())
	rep.Failed = int(failed.Load())
	return rep, ctx.Err()
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (im *Importer) create(ctx context.Context, logger logging.Logger, a *models.Achievement) outcome {
	if im.images != nil && a.Img != "" {
		ok, err := im.images.Exists(ctx, a.Img)
		switch {
		case err != nil:
			logger.Warn(ctx, "error checking achievement image", "achievement", a.ID, "err", err)
		case !ok:
			logger.Warn(ctx, "achievement image is missing", "achievement", a.ID, "img", a.Img)
		}
	}

	_, err := im.creator.Create(ctx, a)
	switch {
	case err == nil:
		return outcomeCreated
	case errors.Is(err, common.ErrorConflict):
		logger.Debug(ctx, "achievement already exists", "achievement", a.ID)
		return outcomeSkipped
	default:
		logger.Warn(ctx, "error creating achievement", "achievement", a.ID, "err", err)
		return outcomeFailed
	}
}

func (im *Importer) sessionAchievement(s Session, now time.Time) *models.Achievement {
	kind := models.Kind(s.Kind)
	if !kind.Valid() {
		kind = models.KindOther
	}
	return &models.Achievement{
		ID:       "session-" + s.ID,
		Name:     `Went to "` + s.Name + `"`,
		Event:    im.event,
		Kind:     kind,
		Session:  s.ID,
		Value:    models.DefaultValue(kind),
		Img:      fmt.Sprintf("%s/%s/achievements/%s/%s.png", im.imageBase, im.event, strings.ToLower(s.Kind), s.ID),
		Validity: models.Validity{From: now, To: now.Add(im.validity)},
	}
}

func (im *Importer) cvAchievement(now time.Time) *models.Achievement {
	return &models.Achievement{
		ID:       "submitted-cv-" + im.event,
		Name:     "Submitted CV",
		Event:    im.event,
		Kind:     models.KindCV,
		Value:    0,
		Img:      fmt.Sprintf("%s/%s/achievements/cv/cv.png", im.imageBase, im.event),
		Validity: models.Validity{From: now, To: now.Add(im.validity)},
	}
}
