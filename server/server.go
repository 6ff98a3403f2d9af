package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"terrainforge/config"
	"terrainforge/pipeline"
)

// MeshData is the "mesh_update" message sent for every published result.
type MeshData struct {
	Type       string          `json:"type"`
	Generation uint64          `json:"generation"`
	Resolution int             `json:"resolution"`
	Full       bool            `json:"full"`
	Vertices   [][3]float32    `json:"vertices"`
	Normals    [][3]float32    `json:"normals"`
	Indices    []uint32        `json:"indices"`
	Min        float32         `json:"min"`
	Max        float32         `json:"max"`
	ElapsedMs  float64         `json:"elapsedMs"`
	Material   config.Material `json:"material"`
}

// Message is a client request or a short server reply.
//
// Requests: {"type":"set","key":"terrain.seed","value":7},
// {"type":"regenerate"} and {"type":"erode"}.
type Message struct {
	Type     string           `json:"type"`
	Key      string           `json:"key,omitempty"`
	Value    json.RawMessage  `json:"value,omitempty"`
	Scope    string           `json:"scope,omitempty"`
	Error    string           `json:"error,omitempty"`
	Material *config.Material `json:"material,omitempty"`
}

type Server struct {
	pipe     *pipeline.Pipeline
	interval time.Duration
	logger   *log.Logger
	upgrader websocket.Upgrader

	settingsMu sync.Mutex
	settings   config.Settings

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	latestMu sync.RWMutex
	latest   *MeshData
}

func New(pipe *pipeline.Pipeline, settings config.Settings, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	interval := time.Duration(settings.Server.UpdateIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Server{
		pipe:     pipe,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		settings: settings,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler serves the websocket at /ws and the current settings at
// /settings.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/settings", s.serveSettings)
	return mux
}

// ListenAndServe runs the frame loop and the HTTP server until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("[server] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run is the frame loop. Every interval it ticks the pipeline and
// broadcasts a newly published mesh.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frameStart := time.Now()
		res, err := s.pipe.Tick()
		if err != nil {
			s.broadcast(Message{Type: "error", Error: err.Error()})
			continue
		}
		if res == nil {
			continue
		}

		data := s.meshData(res)
		s.latestMu.Lock()
		s.latest = data
		s.latestMu.Unlock()

		broadcastStart := time.Now()
		s.broadcast(data)
		if total := time.Since(frameStart); total > s.interval {
			s.logger.Printf("[server] SLOW FRAME: total=%v broadcast=%v", total, time.Since(broadcastStart))
		}
	}
}

func (s *Server) meshData(res *pipeline.Result) *MeshData {
	verts := res.Mesh.Vertices
	data := &MeshData{
		Type:       "mesh_update",
		Generation: res.Generation,
		Resolution: res.Mesh.Resolution,
		Full:       res.Full,
		Vertices:   make([][3]float32, len(verts)),
		Normals:    make([][3]float32, len(verts)),
		Indices:    append([]uint32(nil), res.Mesh.Indices...),
		Min:        res.Range.Min,
		Max:        res.Range.Max,
		ElapsedMs:  float64(res.Elapsed.Microseconds()) / 1000,
		Material:   s.material(),
	}
	for i, v := range verts {
		data.Vertices[i] = v.Position
		data.Normals[i] = v.Normal
	}
	return data
}

func (s *Server) material() config.Material {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings.Viewer.Material
}

func (s *Server) serveSettings(w http.ResponseWriter, r *http.Request) {
	s.settingsMu.Lock()
	settings := s.settings
	s.settingsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Println("[server] websocket upgrade error:", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = connMutex
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	// Late joiners get the current mesh straight away.
	s.latestMu.RLock()
	latest := s.latest
	s.latestMu.RUnlock()
	if latest != nil {
		s.send(conn, connMutex, latest)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Println("[server] websocket read error:", err)
			}
			return
		}
		s.send(conn, connMutex, s.handleMessage(msg))
	}
}

// handleMessage applies one client request and returns the reply.
func (s *Server) handleMessage(msg Message) Message {
	switch msg.Type {
	case "set":
		s.settingsMu.Lock()
		scope, err := s.settings.Apply(msg.Key, msg.Value)
		var material config.Material
		if err == nil {
			material = s.settings.Viewer.Material
			err = s.pushParams(scope)
		}
		s.settingsMu.Unlock()
		if err != nil {
			return Message{Type: "error", Key: msg.Key, Error: err.Error()}
		}
		if scope == config.ScopeViewer {
			s.broadcast(Message{Type: "material", Material: &material})
		}
		return Message{Type: "ack", Key: msg.Key, Scope: scope.String()}
	case "regenerate":
		s.pipe.MarkMeshDirty()
		return Message{Type: "ack", Scope: config.ScopeMesh.String()}
	case "erode":
		s.pipe.MarkErosionDirty()
		return Message{Type: "ack", Scope: config.ScopeErosion.String()}
	default:
		return Message{Type: "error", Error: "unknown message type " + msg.Type}
	}
}

// pushParams forwards the edited settings to the pipeline. Must be called
// with settingsMu held.
func (s *Server) pushParams(scope config.Scope) error {
	if scope != config.ScopeMesh && scope != config.ScopeErosion {
		return nil
	}
	params, err := s.settings.Params()
	if err != nil {
		return err
	}
	if scope == config.ScopeMesh {
		s.pipe.SetTerrain(params.Terrain)
	} else {
		s.pipe.SetErosion(params.Erosion)
	}
	return nil
}

func (s *Server) send(conn *websocket.Conn, mu *sync.Mutex, v any) {
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Println("[server] websocket write error:", err)
	}
}

func (s *Server) broadcast(v any) {
	s.clientsMu.RLock()
	clientsToRemove := []*websocket.Conn{}
	for client, mutex := range s.clients {
		mutex.Lock()
		err := client.WriteJSON(v)
		mutex.Unlock()
		if err != nil {
			s.logger.Println("[server] websocket write error:", err)
			client.Close()
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.clientsMu.RUnlock()

	if len(clientsToRemove) > 0 {
		s.clientsMu.Lock()
		for _, client := range clientsToRemove {
			delete(s.clients, client)
		}
		s.clientsMu.Unlock()
	}
}
