package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/book"
	"github.com/aurorazk/darkpool/pkg/engine"
	"github.com/aurorazk/darkpool/pkg/notify"
	"github.com/aurorazk/darkpool/pkg/observability"
	"github.com/aurorazk/darkpool/pkg/settle"
	"github.com/aurorazk/darkpool/pkg/storage"
)

// ServerConfig wires the core into the transport surface. Journal and
// Metrics are optional.
type ServerConfig struct {
	Book      *book.Book
	Engine    *engine.Engine
	Queue     *settle.Queue
	Notifier  *notify.Notifier
	Journal   *storage.Journal
	Decryptor Decryptor
	Metrics   *observability.Metrics
	AutoMatch bool
	Log       *zap.SugaredLogger
}

// Server exposes the matcher over REST and WebSocket.
type Server struct {
	cfg    ServerConfig
	router *mux.Router
	log    *zap.SugaredLogger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Decryptor == nil {
		cfg.Decryptor = PassthroughDecryptor{}
	}
	s := &Server{cfg: cfg, router: mux.NewRouter(), log: cfg.Log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/match/trigger", s.handleTriggerMatch).Methods("POST")
	api.HandleFunc("/book/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/trades", s.handleTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves the API until the listener fails.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, "validation_failure", err.Error())
		return
	}

	payload := req.Order
	if payload == nil {
		if req.EncryptedOrder == "" {
			s.reject(w, http.StatusBadRequest, "validation_failure", "order or encryptedOrder is required")
			return
		}
		var err error
		payload, err = s.cfg.Decryptor.Decrypt(req.EncryptedOrder)
		if err != nil {
			s.countReject("decryption_failure")
			s.reject(w, http.StatusBadRequest, "decryption_failure", err.Error())
			return
		}
	}

	order, err := payload.ToOrder()
	if err != nil {
		s.countReject("validation_failure")
		s.reject(w, http.StatusBadRequest, "validation_failure", err.Error())
		return
	}

	if err := s.cfg.Book.Add(order); err != nil {
		if errors.Is(err, book.ErrOrderExists) {
			respondJSON(w, SubmitOrderResponse{
				Status:        "resting",
				OrderID:       order.ID,
				AlreadyExists: true,
			})
			return
		}
		s.reject(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.OrdersAccepted.Inc()
	}
	s.log.Infow("order_accepted",
		"order_id", order.ID,
		"side", order.Side.String(),
		"type", order.Type.String(),
		"price", order.Price.String(),
		"size", order.Size.String())

	resp := SubmitOrderResponse{Status: "resting", OrderID: order.ID}
	if s.cfg.AutoMatch && !payload.SkipAutoMatch {
		matches := s.cfg.Engine.MatchBook()
		if len(matches) > 0 {
			s.cfg.Queue.Enqueue(matches...)
			resp.Status = "matched"
			resp.Matches = len(matches)
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.MatchesCreated.WithLabelValues("auto").Add(float64(len(matches)))
			}
		}
	}

	s.afterBookMutation()
	respondJSON(w, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		s.reject(w, http.StatusBadRequest, "validation_failure", "orderId is required")
		return
	}

	found := s.cfg.Book.Remove(req.OrderID)
	if found {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.OrdersCancelled.Inc()
		}
		s.afterBookMutation()
	}
	respondJSON(w, CancelOrderResponse{OrderID: req.OrderID, Found: found})
}

func (s *Server) handleTriggerMatch(w http.ResponseWriter, r *http.Request) {
	var req TriggerMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, "validation_failure", err.Error())
		return
	}

	orderID := req.OrderID
	var inline *book.Order
	if req.Order != nil {
		o, err := req.Order.ToOrder()
		if err != nil {
			s.reject(w, http.StatusBadRequest, "validation_failure", err.Error())
			return
		}
		inline = o
		if orderID == "" {
			orderID = o.ID
		}
	}
	if orderID == "" {
		s.reject(w, http.StatusBadRequest, "validation_failure", "orderId is required")
		return
	}

	res, err := s.cfg.Engine.TriggerMatch(r.Context(), orderID, inline, s.cfg.Queue)
	if err != nil {
		s.respondTriggerError(w, err)
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.MatchesCreated.WithLabelValues("trigger").Inc()
	}
	s.afterBookMutation()
	respondJSON(w, TriggerMatchResponse{
		Status:         "settled",
		TxSignature:    res.TxSignature,
		ExecutionPrice: res.ExecPrice.String(),
		ExecutedSize:   res.ExecSize.String(),
		Counterparty:   notify.Truncate(res.Counterparty),
	})
}

func (s *Server) respondTriggerError(w http.ResponseWriter, err error) {
	var nme *engine.NoMatchError
	var serr *settle.SettlementError
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		s.reject(w, http.StatusNotFound, "order_not_found", "")
	case errors.As(err, &nme):
		rej := TriggerRejection{Status: "rejected", Reason: nme.Reason}
		if nme.HasBestOpposing {
			rej.BestOpposingPrice = nme.BestOpposing.String()
		}
		if nme.HasSpread {
			rej.Spread = nme.Spread.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(rej)
	case errors.As(err, &serr):
		s.reject(w, http.StatusBadGateway, "settlement_failure", serr.Kind.String())
	default:
		s.reject(w, http.StatusBadRequest, "validation_failure", err.Error())
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.cfg.Book.Stats()
	pending, completed, dead := s.cfg.Queue.Depths()

	resp := StatsResponse{
		TotalOrders:           st.TotalOrders,
		BidCount:              st.BidCount,
		AskCount:              st.AskCount,
		SpreadTier:            st.SpreadTier(),
		HasLiquidity:          st.HasLiquidity(),
		PendingSettlements:    pending,
		CompletedSettlements:  completed,
		DeadLetterSettlements: dead,
	}
	if st.HasBestBid {
		resp.BestBid = st.BestBid.String()
	}
	if st.HasBestAsk {
		resp.BestAsk = st.BestAsk.String()
	}
	if st.HasSpread {
		resp.Spread = st.Spread.String()
	}
	respondJSON(w, resp)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		respondJSON(w, []storage.TradeRecord{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	trades, err := s.cfg.Journal.Recent(limit)
	if err != nil {
		s.reject(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if trades == nil {
		trades = []storage.TradeRecord{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// afterBookMutation refreshes gauges and pushes a stats event.
func (s *Server) afterBookMutation() {
	if s.cfg.Metrics != nil {
		st := s.cfg.Book.Stats()
		s.cfg.Metrics.BookOrders.WithLabelValues("bid").Set(float64(st.BidCount))
		s.cfg.Metrics.BookOrders.WithLabelValues("ask").Set(float64(st.AskCount))
		pending, _, dead := s.cfg.Queue.Depths()
		s.cfg.Metrics.PendingDepth.Set(float64(pending))
		s.cfg.Metrics.DeadLetterDepth.Set(float64(dead))
	}
	s.cfg.Notifier.BroadcastStats()
}

func (s *Server) countReject(reason string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.OrdersRejected.WithLabelValues(reason).Inc()
	}
}

func (s *Server) reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
