package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rjmacleod/sentinel/internal/services"
	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
)

// DashboardServiceInterface defines the interface for the monitoring snapshot
type DashboardServiceInterface interface {
	Stats(ctx context.Context) (*services.DashboardStats, error)
}

// DashboardHandler serves the monitoring dashboard and its JSON API
type DashboardHandler struct {
	service DashboardServiceInterface
	logger  *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, logger: logger}
}

// Stats returns the dashboard snapshot as JSON
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load dashboard data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode dashboard stats", slog.Any("error", err))
	}
}

// Page serves the dashboard HTML, which polls the JSON API
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, dashboardPageHTML)
}

const dashboardPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentinel — Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --green: #22c55e;
            --amber: #f59e0b;
            --red: #ef4444;
        }
        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            font-size: 14px;
            line-height: 1.5;
        }
        .container { max-width: 1100px; margin: 0 auto; padding: 24px; }
        header { display: flex; justify-content: space-between; align-items: baseline; margin-bottom: 24px; }
        h1 { font-size: 18px; }
        header a { color: var(--text-secondary); text-decoration: none; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 12px; margin-bottom: 24px; }
        .stat {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 16px;
        }
        .stat .label { color: var(--text-secondary); font-size: 12px; text-transform: uppercase; letter-spacing: 0.05em; }
        .stat .value { font-size: 24px; font-weight: 600; margin-top: 4px; }
        table { width: 100%; border-collapse: collapse; background: var(--bg-subtle); border: 1px solid var(--border); border-radius: 8px; overflow: hidden; }
        th, td { text-align: left; padding: 10px 14px; border-bottom: 1px solid var(--border); }
        th { color: var(--text-secondary); font-size: 12px; text-transform: uppercase; letter-spacing: 0.05em; }
        tr:last-child td { border-bottom: none; }
        .level-Normal { color: var(--green); }
        .level-Suspicious { color: var(--amber); }
        .level-Attack { color: var(--red); }
        .ok { color: var(--green); }
        .fail { color: var(--red); }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Login monitoring</h1>
            <a href="/">Sign in page</a>
        </header>
        <div class="stats">
            <div class="stat"><div class="label">Total attempts</div><div class="value" id="total">—</div></div>
            <div class="stat"><div class="label">Failed attempts</div><div class="value" id="failed">—</div></div>
            <div class="stat"><div class="label">Suspicious</div><div class="value level-Suspicious" id="suspicious">—</div></div>
            <div class="stat"><div class="label">Attacks</div><div class="value level-Attack" id="attack">—</div></div>
            <div class="stat"><div class="label">Flagged addresses</div><div class="value" id="flagged">—</div></div>
            <div class="stat"><div class="label">Blocked now</div><div class="value level-Attack" id="blocked">—</div></div>
        </div>
        <table>
            <thead>
                <tr><th>Time</th><th>Username</th><th>Address</th><th>Result</th><th>Score</th><th>Level</th></tr>
            </thead>
            <tbody id="recent"></tbody>
        </table>
    </div>
    <script>
        function esc(s) {
            const d = document.createElement('div');
            d.textContent = s == null ? '' : String(s);
            return d.innerHTML;
        }
        async function refresh() {
            try {
                const res = await fetch('/api/dashboard');
                if (!res.ok) return;
                const data = await res.json();
                document.getElementById('total').textContent = data.total_attempts;
                document.getElementById('failed').textContent = data.failed_attempts;
                document.getElementById('suspicious').textContent = data.suspicious_count;
                document.getElementById('attack').textContent = data.attack_count;
                document.getElementById('flagged').textContent = data.flagged_addresses;
                document.getElementById('blocked').textContent = (data.active_blocks || []).length;
                const rows = (data.recent_attempts || []).map(a => {
                    const t = new Date(a.attempt_time).toLocaleTimeString();
                    const result = a.success ? '<span class="ok">success</span>' : '<span class="fail">failed</span>';
                    const level = a.risk_level ? '<span class="level-' + esc(a.risk_level) + '">' + esc(a.risk_level) + '</span>' : '—';
                    const score = a.risk_score == null ? '—' : a.risk_score;
                    return '<tr><td>' + esc(t) + '</td><td>' + esc(a.username) + '</td><td>' + esc(a.ip_address) +
                        '</td><td>' + result + '</td><td>' + score + '</td><td>' + level + '</td></tr>';
                });
                document.getElementById('recent').innerHTML = rows.join('');
            } catch (e) {
                // Transient fetch errors are retried on the next tick
            }
        }
        refresh();
        setInterval(refresh, 5000);
    </script>
</body>
</html>
`
