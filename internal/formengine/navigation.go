package formengine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/models"
)

var (
	// ErrNavigationExhausted is returned when probing runs out of modules or
	// hits the probe bounds without finding a topic with content.
	ErrNavigationExhausted = errors.New("formengine: no further content in this direction")

	// ErrWalkInProgress is returned when a walk is requested while another
	// walk on the same walker has not finished.
	ErrWalkInProgress = errors.New("formengine: navigation already in progress")
)

// Position identifies a location in the module/topic sequence.
type Position struct {
	ModuleID int64
	TopicID  int64
}

// Prober answers the walker's questions about the metadata graph. Orderings
// returned by ModuleIDs and TopicIDs define the navigation sequence.
type Prober interface {
	ModuleIDs(ctx context.Context) ([]int64, error)
	TopicIDs(ctx context.Context, moduleID int64) ([]int64, error)
	HasContent(ctx context.Context, moduleID, topicID int64, month time.Month) (bool, error)
}

// StepOverride changes how far a role advances when it crosses out of a
// module. A step of 2 skips the module that would normally come next.
type StepOverride struct {
	Role     models.UserRole
	ModuleID int64
	Step     int
}

// WalkerConfig bounds the probing loops so that sparse or empty metadata can
// never spin the walker forever.
type WalkerConfig struct {
	MaxModuleProbes int
	MaxTopicProbes  int
	ProbeDelay      time.Duration
	Overrides       []StepOverride
}

const (
	defaultMaxModuleProbes = 10
	defaultMaxTopicProbes  = 25
)

// Walker finds the next or previous topic with content for a month. At most
// one walk runs at a time per walker.
type Walker struct {
	prober Prober
	cfg    WalkerConfig
	logger *zap.Logger

	inFlight atomic.Bool
}

func NewWalker(prober Prober, cfg WalkerConfig, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxModuleProbes <= 0 {
		cfg.MaxModuleProbes = defaultMaxModuleProbes
	}
	if cfg.MaxTopicProbes <= 0 {
		cfg.MaxTopicProbes = defaultMaxTopicProbes
	}
	return &Walker{prober: prober, cfg: cfg, logger: logger}
}

// Next walks forward from pos to the first topic with content.
func (w *Walker) Next(ctx context.Context, pos Position, month time.Month, role models.UserRole) (Position, error) {
	return w.walk(ctx, pos, month, role, 1)
}

// Prev walks backward from pos to the first topic with content.
func (w *Walker) Prev(ctx context.Context, pos Position, month time.Month, role models.UserRole) (Position, error) {
	return w.walk(ctx, pos, month, role, -1)
}

func (w *Walker) walk(ctx context.Context, pos Position, month time.Month, role models.UserRole, dir int) (Position, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return Position{}, ErrWalkInProgress
	}
	defer w.inFlight.Store(false)

	moduleIDs, err := w.prober.ModuleIDs(ctx)
	if err != nil {
		return Position{}, err
	}
	moduleIdx := indexOf(moduleIDs, pos.ModuleID)
	if moduleIdx < 0 {
		return Position{}, ErrNavigationExhausted
	}

	// the first module is walked from the current topic; later modules are
	// entered at their boundary
	fromTopicID := pos.TopicID

	for probes := 0; probes < w.cfg.MaxModuleProbes; probes++ {
		if probes > 0 {
			if err := w.pause(ctx); err != nil {
				return Position{}, err
			}
		}

		moduleID := moduleIDs[moduleIdx]
		found, err := w.walkTopics(ctx, moduleID, fromTopicID, month, dir)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, ErrNavigationExhausted) {
			return Position{}, err
		}

		moduleIdx += dir * w.stepFor(role, moduleID)
		if moduleIdx < 0 || moduleIdx >= len(moduleIDs) {
			return Position{}, ErrNavigationExhausted
		}
		fromTopicID = 0
	}

	w.logger.Warn("module probe bound reached",
		zap.Int64("module_id", pos.ModuleID),
		zap.Int("max_probes", w.cfg.MaxModuleProbes))
	return Position{}, ErrNavigationExhausted
}

// walkTopics probes the module's topics in direction dir, starting after
// fromTopicID, or from the boundary when fromTopicID is zero.
func (w *Walker) walkTopics(ctx context.Context, moduleID, fromTopicID int64, month time.Month, dir int) (Position, error) {
	topicIDs, err := w.prober.TopicIDs(ctx, moduleID)
	if err != nil {
		return Position{}, err
	}

	idx := 0
	if dir < 0 {
		idx = len(topicIDs) - 1
	}
	if fromTopicID != 0 {
		cur := indexOf(topicIDs, fromTopicID)
		if cur < 0 {
			return Position{}, ErrNavigationExhausted
		}
		idx = cur + dir
	}

	for probes := 0; probes < w.cfg.MaxTopicProbes; probes++ {
		if idx < 0 || idx >= len(topicIDs) {
			return Position{}, ErrNavigationExhausted
		}
		if probes > 0 {
			if err := w.pause(ctx); err != nil {
				return Position{}, err
			}
		}
		topicID := topicIDs[idx]
		ok, err := w.prober.HasContent(ctx, moduleID, topicID, month)
		if err != nil {
			return Position{}, err
		}
		if ok {
			return Position{ModuleID: moduleID, TopicID: topicID}, nil
		}
		idx += dir
	}
	return Position{}, ErrNavigationExhausted
}

func (w *Walker) stepFor(role models.UserRole, moduleID int64) int {
	for _, o := range w.cfg.Overrides {
		if o.Role == role && o.ModuleID == moduleID && o.Step > 0 {
			return o.Step
		}
	}
	return 1
}

func (w *Walker) pause(ctx context.Context) error {
	if w.cfg.ProbeDelay <= 0 {
		return nil
	}
	t := time.NewTimer(w.cfg.ProbeDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
