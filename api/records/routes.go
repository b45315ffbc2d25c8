package records

import (
	"net/http"

	"github.com/gorilla/mux"

	"AgriDataHub/api"
)

func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(api.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(api.MethodNotAllowed)

	router.HandleFunc("/health", api.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/modules", h.Modules).Methods(http.MethodGet)

	m := router.PathPrefix("/api/{module}").Subrouter()
	m.HandleFunc("/import", h.Import).Methods(http.MethodPost)
	m.HandleFunc("/analytics", h.Analytics).Methods(http.MethodGet)
	m.HandleFunc("/analytics/table", h.AnalyticsTable).Methods(http.MethodGet)
	m.HandleFunc("/analytics/count", h.AnalyticsCount).Methods(http.MethodGet)
	m.HandleFunc("/records", h.ListRecords).Methods(http.MethodGet)
	m.HandleFunc("/records", h.CreateRecord).Methods(http.MethodPost)
	m.HandleFunc("/records/{id}", h.GetRecord).Methods(http.MethodGet)
	m.HandleFunc("/records/{id}", h.UpdateRecord).Methods(http.MethodPut)
	m.HandleFunc("/records/{id}", h.DeleteRecord).Methods(http.MethodDelete)
	m.HandleFunc("/imports/{batch}", h.ImportHistory).Methods(http.MethodGet)

	return router
}
