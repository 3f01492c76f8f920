package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux. The live
// event gateway is mounted alongside so the whole surface shares one mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.Limiter}
	users := UserHandler{Users: deps.Users, Avatars: deps.Avatars}
	messages := MessageHandler{Messages: deps.Messages}
	friends := FriendHandler{Users: deps.Users, Friends: deps.Friends}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)

	mux.HandleFunc("/api/v1/users", RequireAuth(deps.Sessions, users.List))
	mux.HandleFunc("/api/v1/users/me", RequireAuth(deps.Sessions, users.Me))
	mux.HandleFunc("/api/v1/users/avatar", RequireAuth(deps.Sessions, users.Avatar))
	mux.HandleFunc("/api/v1/messages", RequireAuth(deps.Sessions, messages.History))
	mux.HandleFunc("/api/v1/friends", RequireAuth(deps.Sessions, friends.List))
	mux.HandleFunc("/api/v1/friends/request", RequireAuth(deps.Sessions, friends.Request))
	mux.HandleFunc("/api/v1/friends/requests", RequireAuth(deps.Sessions, friends.Requests))
	mux.HandleFunc("/api/v1/friends/accept", RequireAuth(deps.Sessions, friends.Accept))
	mux.HandleFunc("/api/v1/friends/decline", RequireAuth(deps.Sessions, friends.Decline))
	mux.HandleFunc("/api/v1/friends/remove", RequireAuth(deps.Sessions, friends.Remove))

	if deps.Gateway != nil {
		mux.Handle("/ws", deps.Gateway)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users    UserStore
	Sessions SessionManager
	Messages MessageStore
	Friends  FriendService
	Avatars  AvatarStorage
	Gateway  http.Handler
	Limiter  RateLimiter
}
