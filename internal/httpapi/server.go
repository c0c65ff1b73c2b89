// Package httpapi exposes the traffic statistics over HTTP: fixed
// summary endpoints, a flexible range query, a realtime sample feed,
// and a websocket push channel for the same 1Hz samples.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/aggregator"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/classifier"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/diag"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/model"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/store"
)

// Server wires the query layer (FileStore for history, Aggregator for
// the still-in-memory current hour) to a gorilla/mux router.
type Server struct {
	fs         *store.FileStore
	agg        *aggregator.Aggregator
	classifier *classifier.Classifier
	loc        *time.Location

	httpServer *http.Server
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New builds a Server listening on addr.
func New(addr string, fs *store.FileStore, agg *aggregator.Aggregator, cl *classifier.Classifier, loc *time.Location) *Server {
	s := &Server{fs: fs, agg: agg, classifier: cl, loc: loc}

	r := mux.NewRouter()
	r.HandleFunc("/api/summary", s.handleSummary).Methods("GET")
	r.HandleFunc("/api/query", s.handleQuery).Methods("GET")
	r.HandleFunc("/api/history/30days", s.handleLast30Days).Methods("GET")
	r.HandleFunc("/api/history/12months", s.handleLast12Months).Methods("GET")
	r.HandleFunc("/api/history/today_hours", s.handleHourlyToday).Methods("GET")
	r.HandleFunc("/api/date_range", s.handleDateRange).Methods("GET")
	r.HandleFunc("/api/realtime", s.handleRealtime).Methods("GET")
	r.HandleFunc("/api/top_ips", s.handleTopIPs).Methods("GET")
	r.HandleFunc("/api/debug/local_ips", s.handleLocalIPsDebug).Methods("GET")
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws/realtime", s.handleRealtimeWS)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Run starts serving and blocks until the listener fails or is
// closed by Shutdown.
func (s *Server) Run() error {
	log.Printf("httpapi: listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within the given
// timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) now() time.Time { return time.Now().In(s.loc) }

// blendedHourSummary adds the aggregator's undrained in-memory
// increments for keys within [startDay, endDay] on top of whatever
// the file store already has on record, so "today"/"this
// month"/"this year" figures are not stale between SAVE_INTERVAL
// ticks.
func (s *Server) blendedHourSummary(startDay, endDay string) model.RangeSummary {
	sum := model.RangeSummary{}
	for _, row := range s.fs.HourlyRange(startDay, endDay) {
		sum.UpBytes += row.UpBytes
		sum.DownBytes += row.DownBytes
	}

	lo := startDay + " 00:00:00"
	hi := endDay + " 23:59:59"
	for key, hc := range s.agg.SnapshotHourly() {
		if key >= lo && key <= hi {
			sum.UpBytes += hc.Up
			sum.DownBytes += hc.Down
		}
	}
	sum.TotalBytes = sum.UpBytes + sum.DownBytes
	return sum
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	today := now.Format("2006-01-02")
	month := now.Format("2006-01")
	year := now.Format("2006")

	writeJSON(w, map[string]any{
		"today": s.blendedHourSummary(today, today),
		"month": s.blendedHourSummary(month+"-01", today),
		"year":  s.blendedHourSummary(year+"-01-01", today),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "day"
	}
	if start == "" || end == "" {
		http.Error(w, "start and end query params are required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", start); err != nil {
		http.Error(w, "invalid date format", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", end); err != nil {
		http.Error(w, "invalid date format", http.StatusBadRequest)
		return
	}

	var series []model.RangeRow
	switch granularity {
	case "hour":
		series = s.fs.HourlyRange(start, end)
	case "month":
		series = s.fs.MonthlyRange(start[:7], end[:7])
	default:
		series = s.fs.DailyRange(start, end)
	}

	var sum model.RangeSummary
	for _, row := range series {
		sum.UpBytes += row.UpBytes
		sum.DownBytes += row.DownBytes
	}
	sum.TotalBytes = sum.UpBytes + sum.DownBytes

	writeJSON(w, map[string]any{"summary": sum, "series": series})
}

func (s *Server) handleLast30Days(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.fs.Last30Days(s.now()))
}

func (s *Server) handleLast12Months(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.fs.Last12Months(s.now()))
}

func (s *Server) handleHourlyToday(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.fs.HourlyToday(s.now()))
}

func (s *Server) handleDateRange(w http.ResponseWriter, r *http.Request) {
	min, max := s.fs.AvailableDateRange(s.now())
	writeJSON(w, map[string]string{"min": min, "max": max})
}

// realtimeResponse is the sample series plus the current second's
// rate in both bits/s and bytes/s, read from the most recent sample
// so the dashboard doesn't need to derive it itself.
type realtimeResponse struct {
	Samples      []model.RealtimeSample `json:"samples"`
	CurrentUpBps uint64                 `json:"current_up_bps"`
	CurrentDnBps uint64                 `json:"current_down_bps"`
	CurrentUpBPs uint64                 `json:"current_up_Bps"`
	CurrentDnBPs uint64                 `json:"current_down_Bps"`
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	seconds := 60
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			seconds = n
		}
	}
	samples := s.agg.Realtime(seconds)

	resp := realtimeResponse{Samples: samples}
	if len(samples) > 0 {
		last := samples[len(samples)-1]
		resp.CurrentUpBPs = last.Up
		resp.CurrentDnBPs = last.Down
		resp.CurrentUpBps = last.Up * 8
		resp.CurrentDnBps = last.Down * 8
	}
	writeJSON(w, resp)
}

func (s *Server) handleTopIPs(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	writeJSON(w, s.agg.TopIPs(n))
}

func (s *Server) handleLocalIPsDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.classifier.Diag())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, diag.Collect())
}

// handleRealtimeWS pushes one model.RealtimeSample-shaped JSON
// message per second to the client for as long as the connection
// stays open.
func (s *Server) handleRealtimeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}

	go func(c *websocket.Conn) {
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}(conn)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer conn.Close()

	for range ticker.C {
		samples := s.agg.Realtime(1)
		if len(samples) == 0 {
			continue
		}
		if err := conn.WriteJSON(samples[len(samples)-1]); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}
