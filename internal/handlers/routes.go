package handlers

import (
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// SetupRoutes builds the HTTP router
func SetupRoutes(wsHandler *WebSocketHandler, sessionHandler *SessionHandler, presentationHandler *PresentationHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Real-time transport
	router.HandleFunc("/ws", wsHandler.HandleWS).Methods("GET")

	// Session queries
	router.HandleFunc("/api/health", sessionHandler.Health).Methods("GET")
	router.HandleFunc("/api/sessions/{code}", sessionHandler.GetSession).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}/polls/{pollId}/results", sessionHandler.GetPollResults).Methods("GET")

	// Presentation metadata
	router.HandleFunc("/api/presentations/{presentationId}", presentationHandler.GetPresentation).Methods("GET")
	router.HandleFunc("/api/presentations/{presentationId}", presentationHandler.UpsertPresentation).Methods("PUT")
	router.HandleFunc("/api/presentations/{presentationId}/sessions", sessionHandler.ListSessionsByPresentation).Methods("GET")

	return router
}
