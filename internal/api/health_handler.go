package api

import (
	"net/http"

	"github.com/phrazzld/cumo/internal/api/shared"
	"github.com/phrazzld/cumo/internal/platform/gemini"
	"github.com/phrazzld/cumo/internal/task"
)

// ParserStatus reports the natural language parser state.
type ParserStatus interface {
	Status() string
}

// ConsumerStatus reports the task consumer state.
type ConsumerStatus interface {
	Status() task.WorkerState
}

// HealthHandler handles GET /health.
type HealthHandler struct {
	parser   ParserStatus
	consumer ConsumerStatus
}

// NewHealthHandler creates a HealthHandler. A nil parser is reported as
// missing_model.
func NewHealthHandler(parser ParserStatus, consumer ConsumerStatus) *HealthHandler {
	return &HealthHandler{parser: parser, consumer: consumer}
}

// Health always answers 200 with the component states.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		NLP:      gemini.StatusMissingModel,
		Consumer: string(task.StateStopped),
	}
	if h.parser != nil {
		resp.NLP = h.parser.Status()
	}
	if h.consumer != nil {
		resp.Consumer = string(h.consumer.Status())
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
