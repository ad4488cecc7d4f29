package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/events"
	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
	"cpu-loadgen/internal/scenario"

	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr      string
	pool      *loader.Pool
	collector *metrics.Collector
	bus       *events.Bus

	mu             sync.RWMutex
	engine         *scenario.Engine
	engineName     string
	scenarioCancel context.CancelFunc
	wsClients      map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string, pool *loader.Pool, collector *metrics.Collector, bus *events.Bus) *Server {
	return &Server{
		addr:      addr,
		pool:      pool,
		collector: collector,
		bus:       bus,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Start はサーバーを開始する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	// バックグラウンドで配信
	go s.broadcastLoop(ctx)
	go s.forwardEvents(ctx)

	logger.Info("", "API server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler はルーティング済みのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/loads", s.handleLoads)
	mux.HandleFunc("/api/compute", s.handleCompute)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// Prometheusメトリクス
	mux.Handle("/metrics", s.collector.Handler())

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// activePool returns the pool serving control requests. While a
// scenario runs, that is the engine's pool.
func (s *Server) activePool() *loader.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil && s.engine.IsRunning() {
		if p := s.engine.Pool(); p != nil {
			return p
		}
	}
	return s.pool
}

func (s *Server) activeCollector() *metrics.Collector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil && s.engine.IsRunning() {
		if c := s.engine.Collector(); c != nil {
			return c
		}
	}
	return s.collector
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	ThreadCount     int     `json:"thread_count"`
	ComputeType     string  `json:"compute_type"`
	TotalCycles     uint64  `json:"total_cycles"`
	SystemCPU       float64 `json:"system_cpu_percent"`
	ScenarioRunning bool    `json:"scenario_running"`
	ScenarioName    string  `json:"scenario_name,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pool := s.activePool()
	snap := s.activeCollector().TakeSnapshot()

	resp := StatusResponse{
		ThreadCount: pool.ThreadCount(),
		ComputeType: pool.ComputationType().String(),
		TotalCycles: snap.TotalCycles,
		SystemCPU:   snap.SystemCPU,
	}

	s.mu.RLock()
	if s.engine != nil && s.engine.IsRunning() {
		resp.ScenarioRunning = true
		resp.ScenarioName = s.engineName
	}
	s.mu.RUnlock()

	s.writeJSON(w, resp)
}

// WorkerInfo はワーカー情報
type WorkerInfo struct {
	ID       int     `json:"id"`
	Target   float64 `json:"target_percent"`
	Achieved float64 `json:"achieved_percent"`
	Compute  string  `json:"compute_type"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pool := s.activePool()
	achieved := s.activeCollector().Achieved()
	types := pool.WorkerComputationTypes()

	workers := make([]WorkerInfo, 0, pool.ThreadCount())
	for id, target := range pool.GetAllLoads() {
		info := WorkerInfo{
			ID:       id,
			Target:   target,
			Achieved: achieved[id],
			Compute:  types[id].String(),
		}
		workers = append(workers, info)
	}

	s.writeJSON(w, workers)
}

// LoadRequest は負荷設定リクエスト
// workerを省略すると全ワーカーに適用する
type LoadRequest struct {
	Worker  *int    `json:"worker,omitempty"`
	Percent float64 `json:"percent"`
}

func (s *Server) handleLoads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.activePool().GetAllLoads())

	case http.MethodPut, http.MethodPost:
		var req LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		pool := s.activePool()
		var err error
		if req.Worker != nil {
			err = pool.SetThreadLoad(*req.Worker, req.Percent)
		} else {
			err = pool.SetAllLoads(req.Percent)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ComputeRequest は計算種類の変更リクエスト
type ComputeRequest struct {
	Worker *int   `json:"worker,omitempty"`
	Type   string `json:"type"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, map[string]string{"type": s.activePool().ComputationType().String()})

	case http.MethodPut, http.MethodPost:
		var req ComputeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		ct, err := compute.Parse(req.Type)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		pool := s.activePool()
		if req.Worker != nil {
			err = pool.SetWorkerComputationType(*req.Worker, ct)
		} else {
			err = pool.SetComputationType(ct)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, map[string]string{"status": "ok", "type": ct.String()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset   string  `json:"preset"`
	Profile  string  `json:"profile,omitempty"`
	Duration string  `json:"duration,omitempty"`
	Threads  int     `json:"threads,omitempty"`
	Peak     float64 `json:"peak,omitempty"`
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.engine != nil && s.engine.IsRunning() {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	// プリセット取得
	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		config = scenario.QuickScenario()
	}

	// オーバーライド
	if req.Profile != "" {
		if p, err := scenario.ParseProfile(req.Profile); err == nil {
			config.Profile = p
		}
	}
	if req.Duration != "" {
		if d, err := time.ParseDuration(req.Duration); err == nil {
			config.Duration = d
		}
	}
	if req.Threads > 0 {
		config.Threads = req.Threads
	}
	if req.Peak > 0 {
		config.Peak = req.Peak
	}

	engine := scenario.New(config)
	if s.bus != nil {
		engine.SetEventBus(s.bus)
	}
	ctx, cancel := context.WithCancel(context.Background())

	s.engine = engine
	s.engineName = config.Name
	s.scenarioCancel = cancel
	s.mu.Unlock()

	// 直接制御中のワーカーを止めてからシナリオに切り替える
	s.pool.Shutdown()

	// バックグラウンドで実行
	go func() {
		defer cancel()
		result, err := engine.Run(ctx)
		if err != nil {
			logger.Error("", "Scenario failed: %v", err)
			return
		}
		logger.Info("", "Scenario completed: %s (%d cycles)", result.ScenarioName, result.TotalCycles)

		s.broadcast(map[string]interface{}{
			"type":   "scenario_complete",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if s.engine == nil || !s.engine.IsRunning() {
		s.mu.Unlock()
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	cancel := s.scenarioCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		cfg, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{Name: name, Description: cfg.Description})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data interface{}) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool := s.activePool()
			if pool.ThreadCount() == 0 {
				continue
			}
			snap := s.activeCollector().TakeSnapshot()

			s.broadcast(map[string]interface{}{
				"type": "snapshot",
				"status": StatusResponse{
					ThreadCount: pool.ThreadCount(),
					ComputeType: pool.ComputationType().String(),
					TotalCycles: snap.TotalCycles,
					SystemCPU:   snap.SystemCPU,
				},
				"achieved": snap.Achieved,
			})
		}
	}
}

// forwardEvents はイベントバスの通知をWebSocketクライアントに転送する
func (s *Server) forwardEvents(ctx context.Context) {
	if s.bus == nil {
		return
	}
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]interface{}{
				"type":  "event",
				"event": event,
			})
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, loader.ErrInvalidArgument) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
