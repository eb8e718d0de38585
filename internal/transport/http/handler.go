package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"okeanchat/internal/authz"
	"okeanchat/internal/domain"
	"okeanchat/internal/dto"
	"okeanchat/internal/hub"
	"okeanchat/internal/httpx"
	obsmw "okeanchat/internal/observability/middleware"
	"okeanchat/internal/service"
)

type handler struct {
	chat     *service.Chat
	friends  *service.Friends
	groups   *service.Groups
	notes    *service.Notifications
	presence *hub.Presence
}

// me is the authenticated caller. Routes are mounted behind authz.Middleware.
func me(r *http.Request) domain.UserID {
	sub, _ := authz.SubjectFrom(r.Context())
	return sub
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpx.StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		obsmw.Logger(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = http.StatusText(status)
	}
	httpx.WriteJSON(w, status, dto.ErrorResponse{Error: msg, Reason: domain.Reason(err)})
}

func idParam(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrInvalidRequest, name)
	}
	return n, nil
}

func userParam(r *http.Request, name string) (domain.UserID, error) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	if id == "" {
		return "", fmt.Errorf("%w: missing %s", domain.ErrInvalidRequest, name)
	}
	return id, nil
}

func paging(r *http.Request) (page, size int, err error) {
	if page, err = httpx.QueryInt(r, "page", 0); err != nil {
		return 0, 0, err
	}
	if size, err = httpx.QueryInt(r, "size", 50); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

// ---- messages ----

func (h *handler) conversations(w http.ResponseWriter, r *http.Request) {
	out, err := h.chat.Conversations(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) groupConversations(w http.ResponseWriter, r *http.Request) {
	out, err := h.chat.GroupConversations(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) directHistory(w http.ResponseWriter, r *http.Request) {
	peer, err := userParam(r, "peerID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := h.chat.DirectHistory(r.Context(), me(r), peer, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

func (h *handler) groupHistory(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := h.chat.GroupHistory(r.Context(), me(r), groupID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

func (h *handler) message(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.chat.Message(r.Context(), me(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msg)
}

func (h *handler) recallMessage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.chat.Recall(r.Context(), me(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msg)
}

func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.chat.Delete(r.Context(), me(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markConversationRead(w http.ResponseWriter, r *http.Request) {
	peer, err := userParam(r, "peerID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.chat.MarkConversationRead(r.Context(), me(r), peer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{Updated: n})
}

func (h *handler) unreadMessages(w http.ResponseWriter, r *http.Request) {
	n, err := h.chat.UnreadCount(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (h *handler) groupUnread(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.chat.GroupUnreadCount(r.Context(), me(r), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (h *handler) markGroupRead(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.chat.MarkGroupRead(r.Context(), me(r), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{Updated: n})
}

// ---- notifications ----

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.notes.List(r.Context(), me(r), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := h.notes.Unread(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) unreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.UnreadCount(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.notes.MarkRead(r.Context(), me(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.MarkAllRead(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{Updated: n})
}

func (h *handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.notes.Delete(r.Context(), me(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- friends ----

func (h *handler) listFriends(w http.ResponseWriter, r *http.Request) {
	out, err := h.friends.List(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) friendRequests(w http.ResponseWriter, r *http.Request) {
	out, err := h.friends.Requests(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) blockedUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.friends.Blocked(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) onlineFriends(w http.ResponseWriter, r *http.Request) {
	out, err := h.friends.Online(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) friendStatus(w http.ResponseWriter, r *http.Request) {
	peer, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.friends.Status(r.Context(), me(r), peer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status == "" {
		status = "None"
	}
	httpx.WriteJSON(w, http.StatusOK, dto.StatusResponse{UserID: peer, Status: string(status)})
}

func (h *handler) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	peer, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	edge, err := h.friends.SendRequest(r.Context(), me(r), peer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, edge)
}

func (h *handler) acceptFriend(w http.ResponseWriter, r *http.Request) {
	peer, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	edge, err := h.friends.Accept(r.Context(), me(r), peer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, edge)
}

func (h *handler) declineFriend(w http.ResponseWriter, r *http.Request) {
	h.friendAction(w, r, h.friends.Decline)
}

func (h *handler) blockUser(w http.ResponseWriter, r *http.Request) {
	h.friendAction(w, r, h.friends.Block)
}

func (h *handler) unblockUser(w http.ResponseWriter, r *http.Request) {
	h.friendAction(w, r, h.friends.Unblock)
}

func (h *handler) removeFriend(w http.ResponseWriter, r *http.Request) {
	h.friendAction(w, r, h.friends.Remove)
}

func (h *handler) friendAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.UserID, domain.UserID) error) {
	peer, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(r.Context(), me(r), peer); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- groups ----

func groupInput(req dto.GroupRequest) service.GroupInput {
	return service.GroupInput{Name: req.Name, Description: req.Description, Avatar: req.Avatar}
}

func (h *handler) myGroups(w http.ResponseWriter, r *http.Request) {
	out, err := h.groups.ForUser(r.Context(), me(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req dto.GroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.groups.Create(r.Context(), me(r), groupInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, g)
}

func (h *handler) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.groups.Get(r.Context(), me(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.GroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.groups.Update(r.Context(), me(r), id, groupInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.groups.Delete(r.Context(), me(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) groupMembers(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.groups.Members(r.Context(), me(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.AddMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.groups.AddMember(r.Context(), me(r), id, strings.TrimSpace(req.UserID)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	member, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.groups.RemoveMember(r.Context(), me(r), id, member); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	member, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.UpdateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.groups.UpdateMemberRole(r.Context(), me(r), id, member, domain.GroupRole(req.Role)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) leaveGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.groups.Leave(r.Context(), me(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- presence ----

func (h *handler) presenceStatus(w http.ResponseWriter, r *http.Request) {
	user, err := userParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.StatusResponse{UserID: user, Status: string(h.presence.Status(user))})
}

func (h *handler) updatePresence(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := me(r)
	if err := h.presence.SetStatus(r.Context(), user, domain.UserStatus(req.Status)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.StatusResponse{UserID: user, Status: string(h.presence.Status(user))})
}
