// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"dila/internal/device"
	"dila/internal/history"
	"dila/internal/logger"
	"dila/internal/projector"
)

// APIServer exposes the session manager over HTTP for integrations that
// do not link the Go packages directly.
type APIServer struct {
	manager    *Manager
	nonceCache *NonceCache
	store      *history.Store
	logger     zerolog.Logger
	server     *http.Server
}

// NewAPIServer creates an API server over the manager. The history store
// is optional; without one the history endpoint answers 404.
func NewAPIServer(manager *Manager, nonceCache *NonceCache, store *history.Store) *APIServer {
	return &APIServer{
		manager:    manager,
		nonceCache: nonceCache,
		store:      store,
		logger:     logger.With("api"),
	}
}

// Start starts the HTTP API server. Blocks until Stop or a listen error.
func (api *APIServer) Start(address string) error {
	api.server = &http.Server{
		Addr:         address,
		Handler:      api.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	api.logger.Info().Str("address", address).Msg("Starting API server")
	return api.server.ListenAndServe()
}

func (api *APIServer) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(api.loggingMiddleware)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	apiRouter.HandleFunc("/devices", api.handleListDevices).Methods("GET")
	apiRouter.HandleFunc("/devices", api.handleAddDevice).Methods("POST")
	apiRouter.HandleFunc("/devices/{device_id}", api.handleRemoveDevice).Methods("DELETE")
	apiRouter.HandleFunc("/devices/{device_id}/state", api.handleDeviceState).Methods("GET")
	apiRouter.HandleFunc("/devices/{device_id}/command", api.handleDeviceCommand).Methods("POST")
	apiRouter.HandleFunc("/devices/{device_id}/history", api.handleDeviceHistory).Methods("GET")

	apiRouter.HandleFunc("/health", api.handleHealth).Methods("GET")

	return router
}

// Stop shuts the HTTP server down.
func (api *APIServer) Stop() error {
	if api.server != nil {
		return api.server.Close()
	}
	return nil
}

func (api *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		api.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

func (api *APIServer) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (api *APIServer) sendError(w http.ResponseWriter, status int, message string) {
	api.sendJSON(w, status, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *APIServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"devices": api.manager.Devices(),
	})
}

func (api *APIServer) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Port     int    `json:"port"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.sendError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Address == "" {
		api.sendError(w, http.StatusBadRequest, "address is required")
		return
	}

	endpoint := projector.Endpoint{Host: req.Address, Port: req.Port, Password: req.Password}
	id, err := api.manager.AddDevice(endpoint, req.Name)
	if err != nil {
		api.sendError(w, http.StatusConflict, err.Error())
		return
	}

	api.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": id,
	})
}

func (api *APIServer) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["device_id"]

	if err := api.manager.RemoveDevice(id); err != nil {
		api.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	api.nonceCache.ClearSession(id)

	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"removed": id,
	})
}

func (api *APIServer) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["device_id"]

	state, err := api.manager.GetState(id)
	if err != nil {
		api.sendError(w, http.StatusNotFound, err.Error())
		return
	}

	sess, err := api.manager.Session(id)
	if err != nil {
		api.sendError(w, http.StatusNotFound, err.Error())
		return
	}

	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":       id,
		"connection_state": sess.ConnectionState().String(),
		"state":            state,
	})
}

func (api *APIServer) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["device_id"]

	var req struct {
		Nonce  string            `json:"nonce,omitempty"`
		Type   string            `json:"type"`
		Action string            `json:"action"`
		Args   map[string]string `json:"parameters,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.sendError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Nonce != "" && !ValidateNonce(req.Nonce) {
		api.sendError(w, http.StatusBadRequest, "Invalid nonce format")
		return
	}

	// A retried nonce replays the original outcome instead of pressing
	// the button twice.
	if cached, ok := api.nonceCache.CheckNonce(id, req.Nonce); ok {
		api.logger.Debug().Str("session_id", id).Str("nonce", req.Nonce).Msg("Replaying cached response")
		api.sendJSON(w, http.StatusOK, map[string]interface{}{
			"response": cached,
			"cached":   true,
		})
		return
	}

	sess, err := api.manager.Session(id)
	if err != nil {
		api.sendError(w, http.StatusNotFound, err.Error())
		return
	}

	actionJSON, err := json.Marshal(device.ActionRequest{
		Type:       device.ActionType(req.Type),
		Action:     req.Action,
		Parameters: req.Args,
	})
	if err != nil {
		api.sendError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	response, err := sess.Process(actionJSON)
	if err != nil {
		api.sendError(w, commandStatus(err), fmt.Sprintf("Command failed: %v", err))
		return
	}

	api.nonceCache.StoreResponse(id, req.Nonce, response)
	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"response": response,
		"cached":   false,
	})
}

// commandStatus maps command errors onto HTTP status codes: local
// rejections and unreachable devices are not server faults.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, projector.ErrOverloaded), errors.Is(err, projector.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, projector.ErrConnectionLost), errors.Is(err, projector.ErrAuth):
		return http.StatusBadGateway
	case errors.Is(err, projector.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (api *APIServer) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if api.store == nil {
		api.sendError(w, http.StatusNotFound, "History is not enabled")
		return
	}

	id := mux.Vars(r)["device_id"]
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	entries, err := api.store.Recent(id, limit)
	if err != nil {
		api.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"entries":    entries,
	})
}

func (api *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"devices":   len(api.manager.Devices()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
