// Read/admin API handlers.
//
//   - GET    /groups/{chat_id}            (group with members and settings)
//   - PATCH  /groups/{chat_id}            (rename, calendar, timezone, lead times, active)
//   - GET    /groups/{chat_id}/meetings   (meetings, weak ETag support)
//   - GET    /reminders                   (freeform reminders by chat and status)
//   - DELETE /reminders/{id}              (cancel a pending reminder)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/services"
	"github.com/tbourn/go-meeting-bot/internal/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

//
// DTOs
//

// UpdateGroupRequest is the JSON payload of PATCH /groups/{chat_id}. Omitted
// fields stay unchanged.
type UpdateGroupRequest struct {
	Name            *string `json:"name"`
	CalendarID      *string `json:"calendar_id"`
	Timezone        *string `json:"timezone"`
	ReminderMinutes []int   `json:"reminder_minutes"`
	Active          *bool   `json:"active"`
}

// ListMeetingsResponse wraps a group's meetings.
type ListMeetingsResponse struct {
	Meetings []domain.Meeting `json:"meetings"`
}

// ListRemindersResponse wraps freeform reminders.
type ListRemindersResponse struct {
	Reminders []domain.Reminder `json:"reminders"`
}

//
// Handlers
//

// GetGroup godoc
// @ID          getGroup
// @Summary     Get a group
// @Description Returns the group with its members, calendar, timezone and reminder lead times.
// @Tags        Groups
// @Produce     json
// @Security    BearerAuth
//
// @Param       chat_id  path  string  true  "External chat id"  example(120363@g.us)
//
// @Success     200  {object}  domain.Group
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{chat_id} [get]
func (h *Handlers) GetGroup(c *gin.Context) {
	g, err := h.Admin.GetGroup(c.Request.Context(), c.Param("chat_id"))
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, g)
}

// UpdateGroup godoc
// @ID          updateGroup
// @Summary     Update group settings
// @Description Renames the group or changes its calendar, timezone, lead times or active flag. Omitted fields stay unchanged.
// @Tags        Groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       chat_id  path  string                       true  "External chat id"
// @Param       body     body  handlers.UpdateGroupRequest  true  "Fields to change"
//
// @Success     200  {object}  domain.Group
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid update"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{chat_id} [patch]
func (h *Handlers) UpdateGroup(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	g, err := h.Admin.UpdateGroup(c.Request.Context(), c.Param("chat_id"), services.GroupUpdate{
		Name:            req.Name,
		CalendarID:      req.CalendarID,
		Timezone:        req.Timezone,
		ReminderMinutes: req.ReminderMinutes,
		Active:          req.Active,
	})
	switch {
	case errors.Is(err, services.ErrInvalidGroupUpdate):
		fail(c, http.StatusBadRequest, ErrCodeInvalidUpdate, err.Error())
		return
	case errors.Is(err, services.ErrGroupNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, g)
}

// ListMeetings godoc
// @ID          listGroupMeetings
// @Summary     List a group's meetings
// @Description Meetings soonest first. upcoming=true limits the result to meetings that have not started. The full listing supports a weak ETag via If-None-Match.
// @Tags        Meetings
// @Produce     json
// @Security    BearerAuth
//
// @Param       chat_id        path    string  true   "External chat id"
// @Param       upcoming       query   bool    false  "Only meetings that have not started"
// @Param       limit          query   int     false  "Maximum items"  minimum(1) maximum(200) default(50)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ListMeetingsResponse
// @Header      200  {string}  ETag  "Weak ETag of the full listing"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{chat_id}/meetings [get]
func (h *Handlers) ListMeetings(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("chat_id")
	upcoming := strings.EqualFold(c.Query("upcoming"), "true") || c.Query("upcoming") == "1"

	// ETag pre-check (best effort). The upcoming view also changes as time
	// passes, so only the full listing is validated.
	if !upcoming {
		if etag, err := h.Admin.MeetingsETag(ctx, chatID); err == nil && notModified(c, etag) {
			return
		}
	}

	items, err := h.Admin.ListMeetings(ctx, chatID, upcoming, clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Meeting{}
	}
	ok(c, http.StatusOK, ListMeetingsResponse{Meetings: items})
}

// ListReminders godoc
// @ID          listReminders
// @Summary     List freeform reminders
// @Tags        Reminders
// @Produce     json
// @Security    BearerAuth
//
// @Param       chat_id  query  string  false  "Recipient chat id"
// @Param       status   query  string  false  "Reminder status"  Enums(pending, completed, cancelled)
// @Param       limit    query  int     false  "Maximum items"    minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  handlers.ListRemindersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad status"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reminders [get]
func (h *Handlers) ListReminders(c *gin.Context) {
	status := domain.ReminderStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	switch status {
	case "", domain.ReminderPending, domain.ReminderCompleted, domain.ReminderCancelled:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of: pending, completed, cancelled")
		return
	}
	items, err := h.Admin.ListReminders(c.Request.Context(), strings.TrimSpace(c.Query("chat_id")), status, clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Reminder{}
	}
	ok(c, http.StatusOK, ListRemindersResponse{Reminders: items})
}

// CancelReminder godoc
// @ID          cancelReminder
// @Summary     Cancel a pending reminder
// @Tags        Reminders
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Reminder id (UUID)"
//
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found or not pending"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reminders/{id} [delete]
func (h *Handlers) CancelReminder(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reminder id must be a UUID")
		return
	}
	err := h.Admin.CancelReminder(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrReminderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "reminder not found or not pending")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	noContent(c)
}

// clampLimit reads ?limit bounded to [1, maxListLimit].
func clampLimit(c *gin.Context) int {
	return utils.Limit(c.Query("limit"), defaultListLimit, maxListLimit)
}
