package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes attaches the API, asset and health routes to router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Health checks
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	router.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)

	api.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.DeleteItem).Methods(http.MethodDelete)

	api.HandleFunc("/items/{id:[0-9]+}/images", h.ListImages).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/images", h.AddImage).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}/images/primary", h.GetPrimaryImage).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/images/reorder", h.ReorderImages).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}/images/{imageId:[0-9]+}", h.GetImage).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/images/{imageId:[0-9]+}", h.UpdateImage).Methods(http.MethodPatch)
	api.HandleFunc("/items/{id:[0-9]+}/images/{imageId:[0-9]+}", h.DeleteImage).Methods(http.MethodDelete)

	// Assets
	router.HandleFunc("/{category:Cards|Comics}/{file}", h.ServeAsset).Methods(http.MethodGet, http.MethodHead)
}
