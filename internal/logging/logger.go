// Package logging provides category-scoped structured logging for the
// cognition engine, backed by zap. Categories mirror the dependency order
// of spec section 2: term, unify, index, kb, tms, bus, operators, rules,
// cognition.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category identifies the subsystem emitting a log line.
type Category string

const (
	CategoryTerm      Category = "term"
	CategoryUnify     Category = "unify"
	CategoryIndex     Category = "index"
	CategoryKB        Category = "kb"
	CategoryTMS       Category = "tms"
	CategoryBus       Category = "bus"
	CategoryOperators Category = "operators"
	CategoryRules     Category = "rules"
	CategoryCognition Category = "cognition"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the root zap logger used to build per-category
// sugared loggers. debugMode selects the development encoder/level, matching
// the teacher's debug/production split in internal/config/logging.go.
func Initialize(debugMode bool) error {
	var cfg zap.Config
	if debugMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns (creating if needed) the sugared logger for category.
// If Initialize has not been called, a no-op logger is returned so packages
// can log unconditionally without nil checks.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	root := base
	if root == nil {
		root = zap.NewNop()
	}
	l := root.Sugar().Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes all category loggers. Call during shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}
