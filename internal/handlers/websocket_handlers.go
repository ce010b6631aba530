package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"audience-live/internal/auth"
	"audience-live/internal/engine"
	"audience-live/internal/models"
	"audience-live/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Session access is controlled by the join code, not the origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades connections and routes the event protocol
// into the engine
type WebSocketHandler struct {
	hub           *services.WebSocketService
	registry      *engine.Registry
	broadcaster   *engine.Broadcaster
	aggregator    *engine.Aggregator
	presentations *services.PresentationStore
	archive       engine.Archive
	authenticator *auth.Authenticator
}

// NewWebSocketHandler creates the handler and wires itself into the hub's
// event and disconnect callbacks
func NewWebSocketHandler(
	hub *services.WebSocketService,
	registry *engine.Registry,
	broadcaster *engine.Broadcaster,
	aggregator *engine.Aggregator,
	presentations *services.PresentationStore,
	archive engine.Archive,
	authenticator *auth.Authenticator,
) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:           hub,
		registry:      registry,
		broadcaster:   broadcaster,
		aggregator:    aggregator,
		presentations: presentations,
		archive:       archive,
		authenticator: authenticator,
	}
	hub.SetHandlers(h.HandleEvent, h.HandleDisconnect)
	return h
}

// HandleWS upgrades the HTTP request to a WebSocket connection
// GET /ws
func (h *WebSocketHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	h.hub.Serve(uuid.NewString(), conn)
}

// HandleEvent routes one inbound envelope. Validation and state-conflict
// errors go back to the originating client only.
func (h *WebSocketHandler) HandleEvent(client *services.WSClient, envelope models.Envelope) {
	if !client.Allow() {
		h.broadcaster.SendError(client.ConnID, engine.ErrRateLimited)
		return
	}

	switch envelope.Type {
	case models.EventCreateSession:
		h.handleCreateSession(client, envelope.Payload)
	case models.EventJoinSession:
		h.handleJoinSession(client, envelope.Payload)
	case models.EventLeaveSession:
		h.handleLeaveSession(client)
	case models.EventUpdateActivity:
		h.handleUpdateActivity(client, envelope.Payload)
	case models.EventEndActivity:
		h.handleEndActivity(client)
	case models.EventActivityResponse:
		h.handleActivityResponse(client, envelope.Payload)
	case models.EventQuestionUpvote:
		h.handleQuestionUpvote(client, envelope.Payload)
	case models.EventQuestionModerate:
		h.handleQuestionModerate(client, envelope.Payload)
	case models.EventEndSession:
		h.handleEndSession(client)
	default:
		log.Printf("Unknown event: type=%s, conn=%s", envelope.Type, client.ConnID)
	}
}

// HandleDisconnect translates a transport loss into session membership
// changes. Intentional closes leave immediately; transient drops keep the
// participant for the grace window so a reconnect resumes seamlessly.
func (h *WebSocketHandler) HandleDisconnect(client *services.WSClient, intentional bool) {
	sessionCode, userID, role := client.Membership()
	if sessionCode == "" {
		return
	}

	session, err := h.registry.GetSession(sessionCode)
	if err != nil {
		return
	}

	if role == models.RolePresenter {
		session.MarkDisconnected(client.ConnID)
		log.Printf("Presenter disconnected: code=%s", sessionCode)
		return
	}

	if intentional {
		if count, removed := session.RemoveParticipant(userID); removed {
			h.broadcaster.ParticipantCountChanged(session, count)
			log.Printf("Participant left: code=%s, user=%s", sessionCode, userID)
		}
		return
	}

	session.MarkDisconnected(client.ConnID)
	log.Printf("Participant connection lost: code=%s, user=%s", sessionCode, userID)
}

func (h *WebSocketHandler) handleCreateSession(client *services.WSClient, payload json.RawMessage) {
	var req models.CreateSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed create-session payload"})
		return
	}

	if err := h.authenticator.VerifyPresenter(req.Token); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: err.Error()})
		return
	}

	title := h.presentations.Title(req.PresentationID)
	session, err := h.registry.CreateSession(req.PresentationID, title, client.ConnID)
	if err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return
	}
	client.Bind(session.Code, "", models.RolePresenter)

	if h.archive != nil {
		go func() {
			if err := h.archive.CreateSession(session.ID, session.Code, session.PresentationID, session.CreatedAt); err != nil {
				log.Printf("Failed to archive session: code=%s, err=%v", session.Code, err)
			}
		}()
	}

	ack := models.SessionCreatedPayload{SessionID: session.ID, SessionCode: session.Code}
	h.broadcaster.SendTo(client.ConnID, models.NewEnvelope(models.EventSessionCreated, ack))
}

func (h *WebSocketHandler) handleJoinSession(client *services.WSClient, payload json.RawMessage) {
	var req models.JoinSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed join-session payload"})
		return
	}

	session, err := h.registry.GetSession(req.SessionCode)
	if err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return
	}

	if req.Role == models.RolePresenter {
		if err := session.AttachPresenter(client.ConnID); err != nil {
			h.broadcaster.SendError(client.ConnID, err)
			return
		}
		client.Bind(session.Code, req.UserID, models.RolePresenter)
		h.broadcaster.SendTo(client.ConnID, models.NewEnvelope(models.EventSessionInfo, session.Info(true)))
		log.Printf("Presenter joined: code=%s", session.Code)
		return
	}

	count, resumed, err := session.Join(req.UserID, req.UserName, client.ConnID)
	if err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return
	}
	client.Bind(session.Code, req.UserID, models.RoleParticipant)

	h.broadcaster.SendTo(client.ConnID, models.NewEnvelope(models.EventSessionInfo, session.Info(false)))
	if !resumed {
		h.broadcaster.ParticipantCountChanged(session, count)
	}
	log.Printf("Participant joined: code=%s, user=%s, resumed=%v", session.Code, req.UserID, resumed)
}

func (h *WebSocketHandler) handleLeaveSession(client *services.WSClient) {
	client.MarkLeaving()

	sessionCode, userID, role := client.Membership()
	if sessionCode == "" || role != models.RoleParticipant {
		return
	}
	session, err := h.registry.GetSession(sessionCode)
	if err != nil {
		return
	}
	if count, removed := session.RemoveParticipant(userID); removed {
		h.broadcaster.ParticipantCountChanged(session, count)
	}
}

func (h *WebSocketHandler) handleUpdateActivity(client *services.WSClient, payload json.RawMessage) {
	var req models.UpdateActivityPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed update-activity payload"})
		return
	}

	session, ok := h.presenterSession(client)
	if !ok {
		return
	}
	if _, err := h.broadcaster.Activate(session, req.Activity); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
	}
}

func (h *WebSocketHandler) handleEndActivity(client *services.WSClient) {
	session, ok := h.presenterSession(client)
	if !ok {
		return
	}
	if _, err := h.broadcaster.End(session); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
	}
}

func (h *WebSocketHandler) handleActivityResponse(client *services.WSClient, payload json.RawMessage) {
	var req models.ActivityResponsePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed activity-response payload"})
		return
	}

	session, ok := h.memberSession(client)
	if !ok {
		return
	}
	if req.UserID == "" {
		_, req.UserID, _ = client.Membership()
	}
	if err := h.aggregator.Apply(session, req); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
	}
}

func (h *WebSocketHandler) handleQuestionUpvote(client *services.WSClient, payload json.RawMessage) {
	var req models.QuestionUpvotePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed question-upvote payload"})
		return
	}

	session, ok := h.memberSession(client)
	if !ok {
		return
	}
	if req.UserID == "" {
		_, req.UserID, _ = client.Membership()
	}
	if err := h.aggregator.Upvote(session, req); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
	}
}

func (h *WebSocketHandler) handleQuestionModerate(client *services.WSClient, payload json.RawMessage) {
	var req models.QuestionModeratePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "malformed question-moderate payload"})
		return
	}

	session, ok := h.presenterSession(client)
	if !ok {
		return
	}
	if err := h.aggregator.Moderate(session, req); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
	}
}

func (h *WebSocketHandler) handleEndSession(client *services.WSClient) {
	session, ok := h.presenterSession(client)
	if !ok {
		return
	}
	if _, err := h.registry.EndSession(session.Code); err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return
	}
	h.broadcaster.SessionEnded(session)
}

// presenterSession resolves the client's bound session and enforces the
// presenter role for presenter-only operations
func (h *WebSocketHandler) presenterSession(client *services.WSClient) (*engine.Session, bool) {
	sessionCode, _, role := client.Membership()
	if sessionCode == "" || role != models.RolePresenter {
		h.broadcaster.SendError(client.ConnID, &engine.Error{Code: engine.CodeConnectionError, Message: "not a presenter of any session"})
		return nil, false
	}
	session, err := h.registry.GetSession(sessionCode)
	if err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return nil, false
	}
	if session.PresenterConnectionID() != client.ConnID {
		h.broadcaster.SendError(client.ConnID, engine.ErrPresenterConflict)
		return nil, false
	}
	return session, true
}

// memberSession resolves the client's bound session for any role
func (h *WebSocketHandler) memberSession(client *services.WSClient) (*engine.Session, bool) {
	sessionCode, _, _ := client.Membership()
	if sessionCode == "" {
		h.broadcaster.SendError(client.ConnID, engine.ErrSessionNotFound)
		return nil, false
	}
	session, err := h.registry.GetSession(sessionCode)
	if err != nil {
		h.broadcaster.SendError(client.ConnID, err)
		return nil, false
	}
	return session, true
}
