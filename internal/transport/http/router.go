package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"okeanchat/internal/authz"
	"okeanchat/internal/hub"
	"okeanchat/internal/httpx"
	obsmw "okeanchat/internal/observability/middleware"
	"okeanchat/internal/service"
)

type Deps struct {
	Chat          *service.Chat
	Friends       *service.Friends
	Groups        *service.Groups
	Notifications *service.Notifications
	Presence      *hub.Presence
	Users         UserProvisioner
	Validator     authz.Validator
	// WS serves GET /ws once the caller is authenticated.
	WS http.Handler

	CORSOrigins     []string
	RateLimitPerMin int
	RequestTimeout  time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RateLimitPerMin <= 0 {
		d.RateLimitPerMin = 300
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	h := &handler{
		chat:     d.Chat,
		friends:  d.Friends,
		groups:   d.Groups,
		notes:    d.Notifications,
		presence: d.Presence,
	}

	r := chi.NewRouter()

	// --- Middlewares ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httprate.LimitByIP(d.RateLimitPerMin, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsOrAll(d.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.WithMetrics)
	r.Use(httpx.LogRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authMW := authz.Middleware(d.Validator)
	provision := ProvisionUsers(d.Users)

	if d.WS != nil {
		// no request timeout: the handler lives as long as the connection
		r.With(authMW, provision).Get("/ws", d.WS.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(chimw.Timeout(d.RequestTimeout))
		api.Use(authMW)
		api.Use(provision)

		api.Get("/conversations", h.conversations)
		api.Get("/conversations/groups", h.groupConversations)

		api.Route("/messages", func(r chi.Router) {
			r.Get("/unread-count", h.unreadMessages)
			r.Get("/direct/{peerID}", h.directHistory)
			r.Post("/direct/{peerID}/read", h.markConversationRead)
			r.Get("/groups/{groupID}", h.groupHistory)
			r.Get("/groups/{groupID}/unread-count", h.groupUnread)
			r.Post("/groups/{groupID}/read", h.markGroupRead)
			r.Get("/{id}", h.message)
			r.Post("/{id}/recall", h.recallMessage)
			r.Delete("/{id}", h.deleteMessage)
		})

		api.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Get("/unread", h.unreadNotifications)
			r.Get("/unread-count", h.unreadNotificationCount)
			r.Post("/read-all", h.markAllNotificationsRead)
			r.Post("/{id}/read", h.markNotificationRead)
			r.Delete("/{id}", h.deleteNotification)
		})

		api.Route("/friends", func(r chi.Router) {
			r.Get("/", h.listFriends)
			r.Get("/requests", h.friendRequests)
			r.Get("/blocked", h.blockedUsers)
			r.Get("/online", h.onlineFriends)
			r.Get("/{userID}/status", h.friendStatus)
			r.Post("/{userID}/request", h.sendFriendRequest)
			r.Post("/{userID}/accept", h.acceptFriend)
			r.Post("/{userID}/decline", h.declineFriend)
			r.Post("/{userID}/block", h.blockUser)
			r.Post("/{userID}/unblock", h.unblockUser)
			r.Delete("/{userID}", h.removeFriend)
		})

		api.Route("/groups", func(r chi.Router) {
			r.Get("/", h.myGroups)
			r.Post("/", h.createGroup)
			r.Get("/{id}", h.getGroup)
			r.Put("/{id}", h.updateGroup)
			r.Delete("/{id}", h.deleteGroup)
			r.Get("/{id}/members", h.groupMembers)
			r.Post("/{id}/members", h.addGroupMember)
			r.Delete("/{id}/members/{userID}", h.removeGroupMember)
			r.Put("/{id}/members/{userID}/role", h.updateMemberRole)
			r.Post("/{id}/leave", h.leaveGroup)
		})

		api.Put("/presence/status", h.updatePresence)
		api.Get("/presence/{userID}", h.presenceStatus)
	})

	return r
}

func originsOrAll(in []string) []string {
	if len(in) == 0 {
		return []string{"*"}
	}
	return in
}
