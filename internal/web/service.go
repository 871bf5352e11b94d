package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/config"
	"github.com/justinabrahms/debuffchess/internal/debuff"
	"github.com/justinabrahms/debuffchess/internal/session"
)

// Service exposes the local player's Synchronizer to a browser UI.
type Service struct {
	sync     *session.Synchronizer
	registry *debuff.Registry
	config   *config.Config
	hub      *Hub
}

func NewService(synchronizer *session.Synchronizer, registry *debuff.Registry, config *config.Config, hub *Hub) *Service {
	return &Service{
		sync:     synchronizer,
		registry: registry,
		config:   config,
		hub:      hub,
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router wires every route, the CORS middleware and, when configured, the
// static UI.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.HealthHandler).Methods("GET")
	api.HandleFunc("/state", s.StateHandler).Methods("GET")
	api.HandleFunc("/debuffs", s.DebuffsHandler).Methods("GET")
	api.HandleFunc("/history/{index:[0-9]+}", s.HistoryHandler).Methods("GET")

	api.HandleFunc("/select", s.SelectHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/deselect", s.DeselectHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/move", s.MoveHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/debuff", s.DebuffHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/reset", s.ResetHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/leave", s.LeaveHandler).Methods("POST", "OPTIONS")

	api.HandleFunc("/session/offer", s.OfferHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/answer", s.AnswerHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/accept", s.AcceptHandler).Methods("POST", "OPTIONS")

	router.HandleFunc("/ws", s.WebSocketHandler)

	if dir := s.config.Server.StaticDir; dir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
	}
	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult answers an action with the resulting state. Rejected actions
// get 409 and the unchanged state, with no error text.
func (s *Service) writeResult(w http.ResponseWriter, accepted bool) {
	status := http.StatusOK
	if !accepted {
		status = http.StatusConflict
	}
	writeJSON(w, status, s.sync.View())
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	v := s.sync.View()
	connection := "none"
	if v.Session != nil {
		connection = string(v.Session.State)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"transport":  s.config.Peer.Transport,
		"connection": connection,
	})
}

func (s *Service) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.View())
}

func (s *Service) DebuffsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Service) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "Invalid history index", http.StatusBadRequest)
		return
	}
	board, ok := s.sync.BoardBefore(index)
	if !ok {
		http.Error(w, "History entry not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"index": index,
		"board": board,
		"fen":   board.FEN(),
	})
}

type SelectRequest struct {
	Square chess.Coord `json:"square"`
}

func (s *Service) SelectHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Square.Valid() {
		http.Error(w, "Square is off the board", http.StatusBadRequest)
		return
	}
	s.writeResult(w, s.sync.Select(req.Square))
}

// DeselectHandler drops the current selection, if any.
func (s *Service) DeselectHandler(w http.ResponseWriter, r *http.Request) {
	s.sync.ClearSelection()
	s.writeResult(w, true)
}

type MoveRequest struct {
	From chess.Coord `json:"from"`
	To   chess.Coord `json:"to"`
}

func (s *Service) MoveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.From.Valid() || !req.To.Valid() {
		http.Error(w, "Square is off the board", http.StatusBadRequest)
		return
	}

	ok := s.sync.Move(req.From, req.To)
	log.Debug().Str("from", req.From.String()).Str("to", req.To.String()).Bool("accepted", ok).Msg("Move requested")
	s.writeResult(w, ok)
}

type DebuffRequest struct {
	DebuffID debuff.ID `json:"debuffId"`
}

func (s *Service) DebuffHandler(w http.ResponseWriter, r *http.Request) {
	var req DebuffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.writeResult(w, s.sync.ChooseDebuff(req.DebuffID))
}

func (s *Service) ResetHandler(w http.ResponseWriter, r *http.Request) {
	s.sync.NewMatch()
	s.writeResult(w, true)
}

func (s *Service) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	s.sync.Leave()
	s.writeResult(w, true)
}

type SignalResponse struct {
	Payload string `json:"payload"`
}

// handshakeError maps negotiation errors to a status and short message.
func handshakeError(w http.ResponseWriter, err error, invalid string) {
	switch {
	case errors.Is(err, session.ErrInvalidPayload):
		http.Error(w, invalid, http.StatusBadRequest)
	case errors.Is(err, session.ErrSessionActive):
		http.Error(w, "A session is already active", http.StatusConflict)
	case errors.Is(err, session.ErrNoSession):
		http.Error(w, "No session is waiting for an answer", http.StatusConflict)
	default:
		log.Error().Err(err).Msg("Session negotiation failed")
		http.Error(w, "Connection failed", http.StatusBadGateway)
	}
}

func (s *Service) OfferHandler(w http.ResponseWriter, r *http.Request) {
	offer, err := s.sync.Host(r.Context())
	if err != nil {
		handshakeError(w, err, "Invalid offer")
		return
	}
	writeJSON(w, http.StatusOK, SignalResponse{Payload: offer})
}

type AnswerRequest struct {
	Offer string `json:"offer"`
}

func (s *Service) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Offer == "" {
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	answer, err := s.sync.Join(r.Context(), req.Offer)
	if err != nil {
		handshakeError(w, err, "Invalid offer")
		return
	}
	writeJSON(w, http.StatusOK, SignalResponse{Payload: answer})
}

type AcceptRequest struct {
	Answer string `json:"answer"`
}

func (s *Service) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		http.Error(w, "Invalid answer", http.StatusBadRequest)
		return
	}

	if err := s.sync.Accept(r.Context(), req.Answer); err != nil {
		handshakeError(w, err, "Invalid answer")
		return
	}
	s.writeResult(w, true)
}
