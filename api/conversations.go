package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/devcompanion/internal/chat"
)

type ConversationsHandler struct {
	svc *chat.Service
}

func NewConversationsHandler(svc *chat.Service) *ConversationsHandler {
	return &ConversationsHandler{svc: svc}
}

func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.svc.ListConversations()
	writeJSON(w, map[string]any{"conversations": list, "total": len(list)}, http.StatusOK)
}

func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetConversation(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c, http.StatusOK)
}

func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.DeleteConversation(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"message":         "Conversation deleted successfully",
		"conversation_id": id,
	}, http.StatusOK)
}
