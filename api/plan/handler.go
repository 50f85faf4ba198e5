package plan

import (
	"encoding/json"
	"net/http"

	"github.com/hausnetz/eos/core/model"
)

// Planner exposes the current plan and accepts replanning requests.
// Implemented by the cycle engine.
type Planner interface {
	CurrentPlan() *model.DispatchPlan
	Trigger(reason string)
}

// NewPlanHandler returns an HTTP handler exposing the active dispatch plan
// via GET /api/plan. Before the first successful cycle it responds 404.
func NewPlanHandler(p Planner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		current := p.CurrentPlan()
		if current == nil {
			http.Error(w, "no plan yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(current); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewTriggerHandler returns an HTTP handler requesting an immediate
// replanning cycle via POST /api/plan/trigger.
func NewTriggerHandler(p Planner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		p.Trigger("manual")
		w.WriteHeader(http.StatusAccepted)
	})
}
