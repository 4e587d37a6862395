package tabauth

import (
	"fmt"
	"time"

	"github.com/bazaarops/tabauth/storage"
)

// LintWarning is a configuration that validates but is likely unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult collects warnings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

const staleAfterLongThreshold = 7 * 24 * time.Hour

// Lint reports settings that are valid but probably wrong. It does not validate.
func (c *Config) Lint() LintResult {
	var ws LintResult

	if !c.Session.SweepOnStart && c.Session.SweepInterval == 0 {
		ws = append(ws, LintWarning{
			Code:    "sweep_disabled",
			Message: "stale registry entries are never purged; enable sweep_on_start or sweep_interval",
		})
	}
	if c.Session.SweepInterval > 0 && c.Session.SweepInterval > c.Session.StaleAfter {
		ws = append(ws, LintWarning{
			Code:    "sweep_interval_long",
			Message: fmt.Sprintf("sweep_interval %s exceeds stale_after %s", c.Session.SweepInterval, c.Session.StaleAfter),
		})
	}
	if c.Session.StaleAfter > staleAfterLongThreshold {
		ws = append(ws, LintWarning{
			Code:    "stale_after_long",
			Message: fmt.Sprintf("stale_after %s keeps abandoned tabs listed for over a week", c.Session.StaleAfter),
		})
	}
	if c.Durable.Type == storage.TypeNone {
		ws = append(ws, LintWarning{
			Code:    "durable_none",
			Message: "durable tier disabled; remember-me and the active accounts registry are inert",
		})
	}
	if c.Durable.Type == storage.TypeMemory {
		ws = append(ws, LintWarning{
			Code:    "durable_memory",
			Message: "durable tier is in-process; tabs in other processes will not see this registry",
		})
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		ws = append(ws, LintWarning{
			Code:    "audit_blocking",
			Message: "audit drop_if_full is false; a slow sink stalls session operations",
		})
	}
	if c.Durable.Type == storage.TypeRedis && c.Durable.Redis.TTL > 0 && c.Durable.Redis.TTL < c.Session.StaleAfter {
		ws = append(ws, LintWarning{
			Code:    "redis_ttl_short",
			Message: "redis ttl is shorter than stale_after; remembered sessions expire before the registry does",
		})
	}

	return ws
}
