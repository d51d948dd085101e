package auditor

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/ryandielhenn/auditor/internal/telemetry"
)

// Healthz returns 200 OK to indicate the auditor is alive.
func (a *Auditor) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes the auditor id, process ID, current time, uptime and the
// number of tracked musicians. It does not prune.
func (a *Auditor) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		ID        string    `json:"id"`
		Addr      string    `json:"addr"`
		PID       int       `json:"pid"`
		Now       time.Time `json:"now"`
		Uptime    string    `json:"uptime"`
		Musicians int       `json:"musicians"`
	}
	now := a.now()
	data, _ := json.Marshal(resp{
		ID:        a.ID(),
		Addr:      a.Addr(),
		PID:       os.Getpid(),
		Now:       now,
		Uptime:    now.Sub(a.started).Truncate(time.Second).String(),
		Musicians: a.roster.Len(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Musicians answers like the TCP query port: a snapshot of the active
// musicians, pruning the silent ones.
func (a *Auditor) Musicians(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	musicians := a.roster.Snapshot(a.now())
	telemetry.SetActiveMusicians(len(musicians))

	data, err := json.Marshal(musicians)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Routes mounts every admin endpoint on a new mux, each instrumented.
func (a *Auditor) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", telemetry.Instrument("healthz", http.HandlerFunc(a.Healthz)))
	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(a.Info)))
	mux.Handle("/musicians", telemetry.Instrument("musicians", http.HandlerFunc(a.Musicians)))
	mux.Handle("/metrics", telemetry.MetricsHandler())
	return mux
}
