package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/devcompanion/internal/chat"
	"github.com/garnizeh/devcompanion/internal/ratelimit"
	"github.com/garnizeh/devcompanion/pkg/models"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat runs one conversational review turn.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.Chat(r.Context(), ratelimit.ClientKey(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

// Analyze reviews code without keeping a conversation.
func (h *ChatHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.CodeRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	review, err := h.svc.Analyze(r.Context(), ratelimit.ClientKey(r), req.Code())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, review, http.StatusOK)
}

func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.CodeRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.svc.SubmitJob(r.Context(), ratelimit.ClientKey(r), req.Code())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, models.SubmitResponse{JobID: id}, http.StatusOK)
}

type jobStatusResponse struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.JobStatus(mux.Vars(r)["job_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, jobStatusResponse{
		JobID:       j.ID,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}, http.StatusOK)
}

// Result returns the review of a finished job, 202 while it is pending.
func (h *ChatHandler) Result(w http.ResponseWriter, r *http.Request) {
	j, ready, err := h.svc.JobResult(mux.Vars(r)["job_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if !ready {
		writeJSON(w, map[string]string{"job_id": j.ID, "status": string(j.Status)}, http.StatusAccepted)
		return
	}
	writeJSON(w, j.Result, http.StatusOK)
}
