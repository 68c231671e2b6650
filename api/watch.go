package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/poiesic/docvault/core"
)

// Watch message types.
const (
	// Server -> client
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"

	// Client -> server
	MsgTypePing = "ping"
)

const writeWait = 10 * time.Second

// WatchMessage is one frame of a status watch.
type WatchMessage struct {
	Type      string          `json:"type"`
	Artifact  *core.Artifact  `json:"artifact,omitempty"`
	Error     *core.ErrorBody `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// watcher is one live status-watch connection.
type watcher struct {
	id         string
	artifactID string
	conn       *websocket.Conn
	writeMu    sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

func (w *watcher) send(msg WatchMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(msg)
}

func (w *watcher) closeWith(code int, reason string) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func (w *watcher) stop() {
	w.cancel()
}

// watch streams the artifact's record until it reaches a terminal state.
// Ownership is checked before the upgrade so failures get a plain response.
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	artifact, err := s.ownedArtifact(r, owner)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "artifact", artifact.ID, "err", err)
		return
	}
	defer conn.Close()

	// The hijacked connection outlives the request context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wt := &watcher{
		id:         uuid.NewString(),
		artifactID: artifact.ID,
		conn:       conn,
		ctx:        ctx,
		cancel:     cancel,
	}
	if err := s.watchers.Insert(wt.id, wt); err != nil {
		s.logger.Error("error registering watcher", "err", err)
		return
	}
	defer s.watchers.Remove(wt.id)

	s.logger.Debug("watch started", "watcher", wt.id, "artifact", artifact.ID, "owner", owner)
	go s.readPump(wt)
	s.streamStatus(wt, artifact)
	s.logger.Debug("watch ended", "watcher", wt.id, "artifact", artifact.ID)
}

// readPump answers pings and cancels the watch when the client goes away.
func (s *Server) readPump(wt *watcher) {
	defer wt.stop()
	for {
		var msg WatchMessage
		if err := wt.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("watch connection error", "watcher", wt.id, "err", err)
			}
			return
		}
		if msg.Type == MsgTypePing {
			if err := wt.send(WatchMessage{Type: MsgTypePong}); err != nil {
				return
			}
		}
	}
}

func (s *Server) streamStatus(wt *watcher, current *core.Artifact) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last *core.Artifact
	for {
		if changed(last, current) {
			msgType := MsgTypeProgress
			if current.Status.Terminal() {
				msgType = MsgTypeComplete
			}
			if err := wt.send(WatchMessage{Type: msgType, Artifact: current}); err != nil {
				return
			}
			if current.Status.Terminal() {
				wt.closeWith(websocket.CloseNormalClosure, string(current.Status))
				return
			}
			last = current
		}

		select {
		case <-wt.ctx.Done():
			wt.closeWith(websocket.CloseGoingAway, "watch closed")
			return
		case <-ticker.C:
		}

		next, err := s.service.Status(wt.ctx, wt.artifactID)
		if err != nil {
			if wt.ctx.Err() != nil {
				continue
			}
			wt.send(WatchMessage{Type: MsgTypeError, Error: &core.ErrorBody{Kind: core.KindOf(err), Message: err.Error()}})
			wt.closeWith(websocket.CloseNormalClosure, "status unavailable")
			return
		}
		current = next
	}
}

func changed(last, current *core.Artifact) bool {
	if last == nil {
		return true
	}
	return last.Status != current.Status ||
		last.Progress != current.Progress ||
		last.Attempt != current.Attempt ||
		last.Stage != current.Stage
}
