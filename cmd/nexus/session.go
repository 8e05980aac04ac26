package main

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/config"
	"github.com/Rick1330/Nexus-Framework/internal/engine"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator"
	"github.com/Rick1330/Nexus-Framework/internal/state"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
)

// session bundles what one CLI invocation needs to drive the engine.
type session struct {
	cfg        *config.Config
	projectDir string
	engine     *engine.Engine
	db         *state.DB
	logger     *orchestrator.DebugLogger
	memory     *memory.Store
	tools      *tools.Registry

	// active is the plan currently executing, for signals that name none.
	active atomic.Value
}

// activePlan returns the id of the plan being executed, or "".
func (s *session) activePlan() string {
	id, _ := s.active.Load().(string)
	return id
}

type sessionOptions struct {
	journal bool
	// debugLog forces the debug log on even if config leaves it unset.
	debugLog bool
}

func openSession(opts sessionOptions) (*session, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pol, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	s := &session{cfg: cfg, projectDir: dir}

	logPath := cfg.Logging.DebugLog
	if logPath == "" && opts.debugLog {
		logPath = orchestrator.DefaultLogPath(dir)
	}
	s.logger, err = orchestrator.NewDebugLogger(logPath)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithPolicy(pol),
		engine.WithDebugLogger(s.logger),
	}

	if opts.journal {
		s.db, err = openJournal(cfg, dir)
		if err != nil {
			s.logger.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, engine.WithJournal(s.db))
	}

	s.memory = memory.New(24 * time.Hour)
	s.tools = tools.NewRegistry()
	registerBuiltinTools(s.tools, s.memory)
	engineOpts = append(engineOpts, engine.WithMemory(s.memory), engine.WithTools(s.tools))

	s.engine = engine.New(engineOpts...)
	return s, nil
}

// openJournal opens the configured journal, or the project journal.
func openJournal(cfg *config.Config, dir string) (*state.DB, error) {
	if cfg.State.Path == "" {
		return state.OpenProject(dir, cfg.State.Driver)
	}
	db, err := state.Open(cfg.State.Path, cfg.State.Driver)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

func (s *session) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("[nexus] close journal: %v", err)
		}
	}
	s.logger.Close()
}
