package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/menjava/internal/catalog"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/room"
	"github.com/erazemk/menjava/internal/trade"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, trades *trade.Service, cat *catalog.Catalog, hub *room.Hub) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db, Trades: trades}
	cardsHandler := &CardsHandler{Catalog: cat}
	collectionHandler := &CollectionHandler{DB: db, Catalog: cat}
	requestsHandler := &RequestsHandler{Trades: trades}
	sessionsHandler := &SessionsHandler{DB: db, Trades: trades}
	wsHandler := &WSHandler{DB: db, JWTSecret: jwtSecret, Hub: hub}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Trader directory (all roles).
	mux.Handle("GET /api/traders", authMW(http.HandlerFunc(usersHandler.Directory)))

	// Card catalog: read (all roles), write (manager+).
	mux.Handle("GET /api/cards", authMW(http.HandlerFunc(cardsHandler.List)))
	mux.Handle("POST /api/cards", authMW(requireManager(http.HandlerFunc(cardsHandler.Create))))
	mux.Handle("GET /api/cards/{id}", authMW(http.HandlerFunc(cardsHandler.Get)))
	mux.Handle("PUT /api/cards/{id}", authMW(requireManager(http.HandlerFunc(cardsHandler.Update))))

	// Own collection and the market.
	mux.Handle("GET /api/collection", authMW(http.HandlerFunc(collectionHandler.List)))
	mux.Handle("POST /api/collection", authMW(http.HandlerFunc(collectionHandler.Add)))
	mux.Handle("PUT /api/collection/{card_id}", authMW(http.HandlerFunc(collectionHandler.Update)))
	mux.Handle("GET /api/market", authMW(http.HandlerFunc(collectionHandler.Market)))

	// Trade requests.
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("GET /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Get)))
	mux.Handle("POST /api/requests/{id}/accept", authMW(http.HandlerFunc(requestsHandler.Accept)))
	mux.Handle("POST /api/requests/{id}/reject", authMW(http.HandlerFunc(requestsHandler.Reject)))
	mux.Handle("POST /api/requests/{id}/cancel", authMW(http.HandlerFunc(requestsHandler.Cancel)))
	mux.Handle("POST /api/requests/{id}/room", authMW(http.HandlerFunc(requestsHandler.OpenRoom)))

	// Negotiation rooms.
	mux.Handle("POST /api/sessions", authMW(http.HandlerFunc(sessionsHandler.CreatePrivate)))
	mux.Handle("GET /api/sessions", authMW(http.HandlerFunc(sessionsHandler.List)))
	mux.Handle("GET /api/sessions/{id}", authMW(http.HandlerFunc(sessionsHandler.Get)))
	mux.Handle("POST /api/sessions/{id}/select", authMW(http.HandlerFunc(sessionsHandler.Select)))
	mux.Handle("POST /api/sessions/{id}/complete", authMW(http.HandlerFunc(sessionsHandler.Complete)))
	mux.Handle("POST /api/sessions/{id}/reject", authMW(http.HandlerFunc(sessionsHandler.Reject)))
	mux.Handle("GET /api/rooms/{code}", authMW(http.HandlerFunc(sessionsHandler.GetByRoom)))
	mux.Handle("GET /api/trades", authMW(http.HandlerFunc(sessionsHandler.History)))

	// Room WebSocket authenticates itself.
	mux.HandleFunc("GET /api/ws", wsHandler.Serve)

	return mux
}
