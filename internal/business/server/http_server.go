// Package server exposes the core operations over a thin HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/config"
	"github.com/instapipe/dm-manager/internal/middleware/requestlog"
	"github.com/instapipe/dm-manager/internal/serviceerr"
	"github.com/instapipe/dm-manager/internal/token"
)

// Service is the slice of the business layer the HTTP handlers need.
type Service interface {
	Login(ctx context.Context, identity, secret string) (token.Pair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (token.Pair, error)
	ValidateToken(ctx context.Context, accessToken string) (string, error)
	Logout(ctx context.Context, identity string) error
	SendMessage(ctx context.Context, identity, recipient, message string) error
}

// NewHandler builds the API routing table.
func NewHandler(svc Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", handleLogin(svc))
	mux.HandleFunc("POST /refresh-token", handleRefreshToken(svc))
	mux.HandleFunc("POST /validate-token", handleValidateToken(svc))
	mux.HandleFunc("POST /logout", handleLogout(svc))
	mux.HandleFunc("POST /send-message", handleSendMessage(svc))
	mux.HandleFunc("GET /probe", handleProbe)

	return mux
}

func handleLogin(svc Service) http.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		pair, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, pair)
	}
}

func handleRefreshToken(svc Service) http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refresh_token"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}

		pair, err := svc.RefreshAccessToken(r.Context(), req.RefreshToken)
		if err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, pair)
	}
}

func handleValidateToken(svc Service) http.HandlerFunc {
	type request struct {
		AccessToken string `json:"access_token"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}

		identity, err := svc.ValidateToken(r.Context(), req.AccessToken)
		if err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"identity": identity})
	}
}

func handleLogout(svc Service) http.HandlerFunc {
	type request struct {
		AccessToken string `json:"access_token"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}

		identity, err := svc.ValidateToken(r.Context(), req.AccessToken)
		if err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		if err := svc.Logout(r.Context(), identity); err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}

func handleSendMessage(svc Service) http.HandlerFunc {
	type request struct {
		AccessToken string `json:"access_token"`
		Recipient   string `json:"recipient"`
		Message     string `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		if req.Recipient == "" || req.Message == "" {
			writeError(w, http.StatusBadRequest, "recipient and message are required")
			return
		}

		identity, err := svc.ValidateToken(r.Context(), req.AccessToken)
		if err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		if err := svc.SendMessage(r.Context(), identity, req.Recipient, req.Message); err != nil {
			writeClassified(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func handleProbe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	return true
}

// writeClassified maps a taxonomy error to its HTTP status. Anything
// unclassified is a plain internal error; the detail stays in the logs.
func writeClassified(ctx context.Context, w http.ResponseWriter, err error) {
	var classified *serviceerr.Error
	if errors.As(err, &classified) {
		body := map[string]string{
			"error": classified.Description,
			"code":  string(serviceerr.CodeOf(err)),
		}
		if classified.Reason != "" {
			body["reason"] = classified.Reason
		}

		writeJSON(w, classified.HTTPStatus(), body)

		return
	}

	slogctx.Error(ctx, "Unclassified failure", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

// StartHTTPServer serves the API until the context is cancelled, then
// shuts down gracefully.
func StartHTTPServer(ctx context.Context, cfg *config.Config, svc Service) error {
	server := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: requestlog.Middleware(NewHandler(svc)),
	}

	// Parse network if the address is provided in the format of network://address.
	// Otherwise use tcp network by default. Integration tests bind unix
	// sockets to avoid scanning for a free port.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())

		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
