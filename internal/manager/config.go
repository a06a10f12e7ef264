package manager

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/registry"
	"inferd/internal/settings"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry *registry.Registry
	Settings *settings.Store
	// BudgetMB caps the summed MemoryMB of loaded runners; 0 disables eviction.
	BudgetMB int
	MarginMB int
	// Admission limits for runners with Requirements.MaxConcurrent > 0.
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	Publisher     EventPublisher
	Logger        *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		reg:       cfg.Registry,
		settings:  cfg.Settings,
		budgetMB:  cfg.BudgetMB,
		marginMB:  cfg.MarginMB,
		instances: make(map[string]*instance),
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	if m.reg == nil {
		m.reg = registry.New()
	}
	if m.settings == nil {
		m.settings = settings.NewStore(settings.Default())
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	return m
}
