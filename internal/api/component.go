// Package api is the northbound HTTP API: install, list and remove
// diversions, and inspect the live mapping table.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	divertctl "github.com/veesix-networks/osvrouter/internal/divert"
	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
)

type Component struct {
	*component.Base

	logger *slog.Logger
	divert *divertctl.Component
	table  *ifmap.Table
	server *http.Server
}

func New(deps component.Dependencies, divert *divertctl.Component) (*Component, error) {
	c := &Component{
		Base:   component.NewBase("api"),
		logger: logger.Component(logger.API),
		divert: divert,
		table:  deps.Mappings,
	}

	router := chi.NewRouter()
	router.Route("/v1", func(r chi.Router) {
		r.Route("/diversions", func(r chi.Router) {
			r.Get("/", c.handleList)
			r.Post("/", c.handleCreate)
			r.Delete("/", c.handleDelete)
		})
		r.Get("/mappings", c.handleMappings)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c.server = &http.Server{
		Addr:         deps.Config.API.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return c, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.Go(func() {
		c.logger.Info("API listening", "addr", c.server.Addr)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("API server error", "error", err)
		}
	})
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping api component")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		c.logger.Warn("API server shutdown", "error", err)
	}
	c.StopContext()
	return nil
}

// CreateRequest accepts either a raw command string or the structured form.
type CreateRequest struct {
	Command    string `json:"command,omitempty"`
	Protocols  string `json:"protocols,omitempty"`
	Interface  string `json:"interface,omitempty"`
	HostIfName string `json:"host_if_name,omitempty"`
}

func (r CreateRequest) command() string {
	if r.Command != "" {
		return r.Command
	}
	return r.Protocols + " from " + r.Interface + " as " + r.HostIfName
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Component) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rec, err := c.divert.Divert(r.Context(), req.command())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (c *Component) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.divert.List())
}

func (c *Component) handleDelete(w http.ResponseWriter, r *http.Request) {
	ifName := r.URL.Query().Get("interface")
	if ifName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "interface query parameter required"})
		return
	}
	if err := c.divert.Remove(r.Context(), ifName); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Component) handleMappings(w http.ResponseWriter, r *http.Request) {
	type mapping struct {
		Fastpath  uint32 `json:"fastpath_sw_if_index"`
		Shadow    uint32 `json:"shadow_sw_if_index"`
		Protocols string `json:"protocols"`
	}
	diversions := c.table.Diversions()
	out := make([]mapping, 0, len(diversions))
	for _, d := range diversions {
		out = append(out, mapping{Fastpath: d.Fastpath, Shadow: d.Shadow, Protocols: d.Protos.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
