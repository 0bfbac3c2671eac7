package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered health checks and aggregates them per probe.
type Manager struct {
	logger        *zap.Logger
	cacheDuration time.Duration
	checkTimeout  time.Duration

	mu           sync.RWMutex
	checkers     map[string]Checker
	dependencies []Checker

	cacheMutex sync.RWMutex
	cache      map[string]*cachedResult

	serverChecker    *ServerChecker
	readinessChecker *ReadinessChecker
}

type cachedResult struct {
	result    CheckResult
	expiresAt time.Time
}

// NewManager creates a new health check manager.
func NewManager(logger *zap.Logger, cacheDuration, checkTimeout time.Duration) *Manager {
	return &Manager{
		logger:        logger,
		checkers:      make(map[string]Checker),
		cache:         make(map[string]*cachedResult),
		cacheDuration: cacheDuration,
		checkTimeout:  checkTimeout,
	}
}

// RegisterChecker registers a checker for the startup probe.
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkers[checker.Name()] = checker

	switch c := checker.(type) {
	case *ServerChecker:
		m.serverChecker = c
	case *ReadinessChecker:
		m.readinessChecker = c
	}
}

// RegisterReadinessDependency registers a checker for the startup probe that
// also gates readiness: a dependency reporting anything other than ok takes
// the service out of rotation.
func (m *Manager) RegisterReadinessDependency(checker Checker) {
	m.RegisterChecker(checker)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies = append(m.dependencies, checker)
}

// SetServersRunning marks the servers as running.
func (m *Manager) SetServersRunning(running bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.serverChecker != nil {
		m.serverChecker.SetRunning(running)
	}
	if m.readinessChecker != nil {
		m.readinessChecker.SetRunning(running)
	}
	m.invalidate("servers", "readiness")
}

// SetShuttingDown marks the service as shutting down.
func (m *Manager) SetShuttingDown(shutDown bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readinessChecker != nil {
		m.readinessChecker.SetShuttingDown(shutDown)
	}
	m.invalidate("readiness")
}

// CheckAll runs all registered health checks concurrently.
func (m *Manager) CheckAll(ctx context.Context) []CheckResult {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	return m.runAll(ctx, checkers)
}

func (m *Manager) runAll(ctx context.Context, checkers []Checker) []CheckResult {
	results := make([]CheckResult, 0, len(checkers))
	resultChan := make(chan CheckResult, len(checkers))

	var wg sync.WaitGroup
	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			resultChan <- m.runCheck(ctx, c)
		}(checker)
	}

	wg.Wait()
	close(resultChan)

	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

// runCheck runs a single health check with timeout and caching.
func (m *Manager) runCheck(ctx context.Context, checker Checker) CheckResult {
	name := checker.Name()

	if cached := m.getCachedResult(name); cached != nil {
		return *cached
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	result := checker.Check(checkCtx)
	if !result.OK() {
		m.logger.Debug("Health check not ok",
			zap.String("check", name),
			zap.String("status", string(result.Status)),
			zap.String("message", result.Message),
		)
	}

	m.cacheResult(name, result)

	return result
}

// getCachedResult returns a cached result if it exists and hasn't expired.
func (m *Manager) getCachedResult(name string) *CheckResult {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	if cached, ok := m.cache[name]; ok {
		if time.Now().Before(cached.expiresAt) {
			result := cached.result
			return &result
		}
	}

	return nil
}

// cacheResult caches a check result.
func (m *Manager) cacheResult(name string, result CheckResult) {
	if m.cacheDuration <= 0 {
		return
	}

	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	m.cache[name] = &cachedResult{
		result:    result,
		expiresAt: time.Now().Add(m.cacheDuration),
	}
}

func (m *Manager) invalidate(names ...string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	for _, name := range names {
		delete(m.cache, name)
	}
}

// GetStartupStatus returns the startup status of the service. Any error wins
// over starting, which wins over not-ready.
func (m *Manager) GetStartupStatus(ctx context.Context) StartupResponse {
	results := m.CheckAll(ctx)

	response := StartupResponse{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Checks:    make(map[string]Status, len(results)),
	}

	for _, result := range results {
		response.Checks[result.Name] = result.Status
		response.Status = response.Status.Worse(result.Status)
	}

	return response
}

// GetLivenessStatus returns the liveness status of the service.
// Liveness is minimal - just confirms the goroutine is alive.
func (m *Manager) GetLivenessStatus() LivenessResponse {
	return LivenessResponse{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
}

// GetReadinessStatus returns the readiness status of the service.
func (m *Manager) GetReadinessStatus(ctx context.Context) ReadinessResponse {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.dependencies)+1)
	if m.readinessChecker != nil {
		checkers = append(checkers, m.readinessChecker)
	}
	checkers = append(checkers, m.dependencies...)
	m.mu.RUnlock()

	response := ReadinessResponse{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
	if len(checkers) == 0 {
		response.Ready = true
		return response
	}

	response.Checks = make(map[string]Status, len(checkers))
	for _, result := range m.runAll(ctx, checkers) {
		response.Checks[result.Name] = result.Status
		if !result.OK() {
			response.Status = StatusNotReady
		}
	}
	response.Ready = response.Status == StatusOK

	return response
}
