// gridshare server: REST API plus live collaboration over WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridshare/gridshare/cmd/server/handlers"
	"github.com/gridshare/gridshare/internal/auth"
	"github.com/gridshare/gridshare/internal/collab"
	"github.com/gridshare/gridshare/internal/config"
	"github.com/gridshare/gridshare/internal/db"
	"github.com/gridshare/gridshare/internal/logging"
	"github.com/gridshare/gridshare/internal/perms"
)

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("failed to open database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Ensure(database.DB); err != nil {
		logging.Error("failed to apply schema", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	resolver := perms.NewResolver(repo)
	coordinator := collab.NewCoordinator(repo, resolver)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(repo, verifier)
	docHandler := handlers.NewDocumentHandler(repo, resolver, coordinator)
	userHandler := handlers.NewUserHandler(repo)
	permHandler := handlers.NewPermissionHandler(repo, resolver)
	inviteHandler := handlers.NewInviteHandler(repo, resolver, cfg.PublicURL)

	router := mux.NewRouter()
	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return handlers.RequireAuth(verifier, h)
	}

	router.HandleFunc("/api/users", authed(userHandler.Search)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents", authed(docHandler.Create)).Methods(http.MethodPost)
	router.HandleFunc("/api/documents", authed(docHandler.List)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", authed(docHandler.Get)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", authed(docHandler.UpdateContent)).Methods(http.MethodPut)
	router.HandleFunc("/api/documents/{id}/history", authed(docHandler.History)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/revert/{changeId}", authed(docHandler.Revert)).Methods(http.MethodPost)
	router.HandleFunc("/api/documents/{id}/export", authed(docHandler.Export)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/print", authed(docHandler.Print)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/snapshots", authed(docHandler.CreateSnapshot)).Methods(http.MethodPost)
	router.HandleFunc("/api/documents/{id}/snapshots", authed(docHandler.ListSnapshots)).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/permissions", authed(permHandler.Upsert)).Methods(http.MethodPut)
	router.HandleFunc("/api/documents/{id}/invite-links", authed(inviteHandler.Create)).Methods(http.MethodPost)
	router.HandleFunc("/api/documents/{id}/invite-links/{token}/revoke", authed(inviteHandler.Revoke)).Methods(http.MethodPost)
	router.HandleFunc("/api/invites/consume", authed(inviteHandler.Consume)).Methods(http.MethodPost)

	router.HandleFunc("/ws", handleCollab(verifier, coordinator)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logging.Info("server listening", map[string]interface{}{"addr": cfg.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error("shutdown failed", err)
	}
}
