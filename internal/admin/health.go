package admin

import (
	"context"
	"encoding/json"
	"time"

	"idledger/internal/audit"
	"idledger/internal/ledger/contract"
	"idledger/pkg/requestcontext"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ComponentHealth reports one subsystem.
type ComponentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Health is the aggregate system health report. Overall is degraded when
// any component is; the report never errors, it describes.
type Health struct {
	OverallHealth string                     `json:"overallHealth"`
	Components    map[string]ComponentHealth `json:"components"`
	Ledger        *contract.Stats            `json:"ledger,omitempty"`
	CheckedAt     time.Time                  `json:"checkedAt"`
}

// SystemHealth inspects the gateway session, the key configuration and the
// ledger, and aggregates the findings. A failing subsystem degrades the
// report instead of failing the check.
func (s *Service) SystemHealth(ctx context.Context) Health {
	health := Health{
		Components: make(map[string]ComponentHealth),
		CheckedAt:  requestcontext.Now(ctx),
	}

	status := s.ledger.GetNetworkStatus()
	if status.Connected {
		health.Components["gateway"] = ComponentHealth{Status: StatusHealthy, Detail: status.Network}
	} else {
		health.Components["gateway"] = ComponentHealth{Status: StatusDegraded, Detail: status.Reason}
	}

	report := s.keys.ValidateKeyConfiguration()
	if report.OK() {
		health.Components["keys"] = ComponentHealth{Status: StatusHealthy}
	} else {
		for _, issue := range report.Issues {
			health.Components[issue.Field] = ComponentHealth{Status: StatusDegraded, Detail: issue.Reason}
		}
	}

	if raw, err := s.ledger.EvaluateTransaction(ctx, contract.OpGetStats, nil); err != nil {
		health.Components["ledger"] = ComponentHealth{Status: StatusDegraded, Detail: err.Error()}
	} else {
		var stats contract.Stats
		if err := json.Unmarshal(raw, &stats); err != nil {
			health.Components["ledger"] = ComponentHealth{Status: StatusDegraded, Detail: "decode stats: " + err.Error()}
		} else {
			health.Components["ledger"] = ComponentHealth{Status: StatusHealthy}
			health.Ledger = &stats
		}
	}

	health.OverallHealth = StatusHealthy
	for _, component := range health.Components {
		if component.Status != StatusHealthy {
			health.OverallHealth = StatusDegraded
			break
		}
	}

	s.auditLog.Append(ctx, audit.TypeHealthCheck, "system", map[string]any{
		"overall": health.OverallHealth,
	})
	return health
}
