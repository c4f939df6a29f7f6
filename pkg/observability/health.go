package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Health report statuses. Degraded keeps serving traffic; unhealthy
// flips the readiness route to 503 so the instance is pulled from
// rotation.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const readinessTimeout = 5 * time.Second

// HealthChecker verifies the two stores the service cannot run
// without: postgres holds the profiles and protected rows, redis holds
// the sessions. Either may be nil and is then skipped.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a checker over the live connections.
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// Report is the aggregate document served on the readiness route.
type Report struct {
	Status       string                 `json:"status"`
	CheckedAt    time.Time              `json:"checked_at"`
	Dependencies map[string]CheckResult `json:"dependencies,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// Check runs every dependency check and folds the results into one
// status. Sessions live in redis, so a redis outage means nobody can
// authenticate: unhealthy, not degraded.
func (h *HealthChecker) Check(ctx context.Context) Report {
	report := Report{
		Status:       StatusHealthy,
		CheckedAt:    time.Now().UTC(),
		Dependencies: make(map[string]CheckResult),
	}

	if h.db != nil {
		result := h.checkDatabase(ctx)
		report.Dependencies["database"] = result
		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			report.Status = StatusDegraded
		}
	}

	if h.redis != nil {
		result := h.checkRedis(ctx)
		report.Dependencies["redis"] = result
		if result.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
		}
	}

	return report
}

// checkDatabase pings postgres and then touches the profile table. A
// reachable database with no schema still cannot serve a single
// authenticated request, so a failed table read is unhealthy, not a
// softer state. A saturated connection pool only degrades.
func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()

	if err := h.db.PingContext(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Detail:  err.Error(),
			Latency: time.Since(start).Milliseconds(),
		}
	}

	var profiles int64
	if err := h.db.QueryRowContext(ctx, "SELECT count(*) FROM user_profiles").Scan(&profiles); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Detail:  "profile table unreadable: " + err.Error(),
			Latency: time.Since(start).Milliseconds(),
		}
	}

	result := CheckResult{Status: StatusHealthy, Latency: time.Since(start).Milliseconds()}
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		result.Status = StatusDegraded
		result.Detail = "connection pool exhausted"
	}
	return result
}

func (h *HealthChecker) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Status: StatusHealthy}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		result.Status = StatusUnhealthy
		result.Detail = err.Error()
	}
	result.Latency = time.Since(start).Milliseconds()
	return result
}

// Liveness answers 200 whenever the process is up. It deliberately
// touches no dependency so a postgres outage does not get the process
// restarted.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     StatusHealthy,
		"checked_at": time.Now().UTC(),
	})
}

// Readiness runs the dependency checks and answers 503 only when the
// report is unhealthy. Degraded still serves.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(report)
}

// RegisterHealthRoutes mounts the kubernetes-style routes. /health is
// an alias for the readiness check.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
