package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/spotengine/internal/backfill"
	"github.com/aristath/spotengine/internal/botstate"
	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/collectors"
	"github.com/aristath/spotengine/internal/config"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/events"
	"github.com/aristath/spotengine/internal/exchangesync"
	"github.com/aristath/spotengine/internal/features"
	"github.com/aristath/spotengine/internal/gates"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/aristath/spotengine/internal/registry"
	"github.com/aristath/spotengine/internal/reliability"
	"github.com/aristath/spotengine/internal/risk"
	"github.com/aristath/spotengine/internal/router"
	"github.com/aristath/spotengine/internal/sizing"
	"github.com/aristath/spotengine/internal/strategy"
	"github.com/aristath/spotengine/internal/tiering"
	"github.com/aristath/spotengine/internal/universe"
)

// ProductLister pulls the exchange's current product catalogue for the
// universe scanner's rebuild pass (spec.md §4.6 step 1). No concrete
// implementation ships here; like exchangeclient.Client's missing bulk
// listing endpoint, this is an external collaborator boundary (see
// DESIGN.md). A nil ProductLister degrades the universe rebuild task to
// a logged no-op instead of panicking.
type ProductLister func(ctx context.Context) ([]universe.ProductSummary, error)

// Deps bundles every component the coordinator drives. It is a plain
// struct of already-constructed collaborators chosen at boot, not a DI
// container.
type Deps struct {
	Settings     *config.Settings
	RuntimeStore *config.Store
	Layout       paths.Layout
	Mode         domain.TradingMode

	Buffers     *candles.BufferManager
	CandleStore *candles.Store
	Tiering     *tiering.Scheduler
	Universe    *universe.Scanner

	Features   *features.Engine
	Strategies []strategy.Strategy

	Gates *gates.Checker
	Sizer *sizing.Sizer

	Router      *router.Router
	StopManager *router.StopManager
	Registry    *registry.Registry
	Sync        exchangesync.Sync

	DailyStats       *risk.DailyStatsTracker
	CircuitBreaker   *risk.CircuitBreaker
	Cooldowns        *risk.Cooldowns
	KillSwitch       *risk.KillSwitch
	RejectionTracker *risk.RejectionTracker

	Recorder *events.Recorder

	BotStateStore *botstate.Store
	ControlQueue  *botstate.Queue

	WSCollector *collectors.WSCollector
	RESTPoller  *collectors.RESTPoller

	Backfill    *backfill.Task
	SmokeTester *backfill.SmokeTester

	Health   *reliability.HealthReporter
	Throttle *reliability.ThrottledLogger
	Backup   *reliability.BackupUploader

	Products ProductLister

	Stablecoins map[string]struct{}

	Log zerolog.Logger
}
