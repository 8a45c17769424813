package api

import (
	"math/rand/v2"
	"net/http"

	"github.com/shaiso/Itemsvc/internal/telemetry"
)

// SimulateSlow отвечает после случайной задержки.
// GET /simulate/slow
func (h *Handler) SimulateSlow(w http.ResponseWriter, r *http.Request) {
	delay := uniform(h.simulation.SlowMin, h.simulation.SlowMax)

	if err := sleep(r.Context(), delay); err != nil {
		telemetry.FromContext(r.Context()).Debug("slow request cancelled", "error", err)
		return
	}

	Success(w, SlowResponse{
		Message:      "Slow response",
		DelaySeconds: delay.Seconds(),
	})
}

// SimulateError с вероятностью ErrorRate отвечает 500.
// GET /simulate/error
func (h *Handler) SimulateError(w http.ResponseWriter, r *http.Request) {
	if rand.Float64() < h.simulation.ErrorRate {
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, MsgSimulatedError)
		return
	}

	Success(w, MessageResponse{Message: "Success!"})
}
