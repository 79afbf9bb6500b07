package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/service"
)

type RoomHandler struct {
	svc *service.RoomService
}

func NewRoomHandler(s *service.RoomService) *RoomHandler { return &RoomHandler{svc: s} }

type createRoomRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type addConversationRequest struct {
	Timestamp int64            `json:"timestamp"`
	Messages  []models.Message `json:"messages"`
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("List rooms error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createRoomRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := h.svc.Create(r.Context(), in.Name, in.Image)
	if err != nil {
		log.Printf("Create room error (username=%s): %v", UsernameFrom(r.Context()), err)
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := h.svc.Get(r.Context(), roomId)
	if err != nil {
		if !errors.Is(err, service.ErrRoomNotFound) {
			log.Printf("Get room error (roomId=%s): %v", roomId, err)
		}
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// Messages はbeforeより前の最新の会話を返します
// 会話がない場合は空のmessagesを返します
func (h *RoomHandler) Messages(w http.ResponseWriter, r *http.Request) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	before, err := parseBefore(r.URL.Query().Get("before"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	conv, ok, err := h.svc.LastConversation(r.Context(), roomId, before)
	if err != nil {
		log.Printf("Get conversation error (roomId=%s, before=%d): %v", roomId, before, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"messages": []models.Message{}})
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (h *RoomHandler) AddMessages(w http.ResponseWriter, r *http.Request) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in addConversationRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	username := UsernameFrom(r.Context())
	for i := range in.Messages {
		if in.Messages[i].Username == "" {
			in.Messages[i].Username = username
		}
	}
	conv, err := h.svc.AddConversation(r.Context(), roomId, in.Timestamp, in.Messages)
	if err != nil {
		log.Printf("Add conversation error (roomId=%s, username=%s): %v", roomId, username, err)
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (h *RoomHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
