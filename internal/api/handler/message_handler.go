package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// MessageHandler serves the append-only message log.
type MessageHandler struct {
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewMessageHandler(messages repository.MessageRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// List handles GET /api/v1/messages
//
// @Summary  List message records with filtering and pagination
// @Tags     messages
// @Produce  json
// @Param    status     query     string  false  "Filter by status"
// @Param    channel    query     string  false  "Filter by channel"
// @Param    recipient  query     string  false  "Filter by recipient"
// @Param    from       query     string  false  "Created after (RFC3339)"
// @Param    to         query     string  false  "Created before (RFC3339)"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/messages [get]
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseMessageFilter(r)
	messages, total, err := h.messages.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("message listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  messages,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func parseMessageFilter(r *http.Request) domain.MessageFilter {
	q := r.URL.Query()
	filter := domain.MessageFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.MessageStatus(s)
		filter.Status = &st
	}
	if ch := q.Get("channel"); ch != "" {
		c := domain.Channel(ch)
		filter.Channel = &c
	}
	if rec := q.Get("recipient"); rec != "" {
		filter.Recipient = &rec
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}
