package httpx

import (
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/julienschmidt/httprouter"
	"github.com/mailru/easygo/netpoll"
	"go.uber.org/zap"
)

// Hub fans out topic-framed observer messages (spec §6) to websocket
// clients. In this repository the only publisher is the ingestion
// pipeline, with the "dirty" topic; nothing publishes the full map, local
// neighborhood, viewpoint lists or planned path.
// Grounded in the teacher's pkg/http/router/controllers/hub.go: the same
// gobwas/ws + wsutil pair over a plain net.Conn upgrade, with disconnects
// detected by a mailru/easygo/netpoll one-shot read-ready descriptor
// instead of a blocking per-connection goroutine — this hub only ever
// pushes, so a netpoll callback is enough to notice a client going away.
type Hub struct {
	log    *zap.Logger
	poller netpoll.Poller

	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	poller, err := netpoll.New(nil)
	if err != nil {
		log.Warn("hub: netpoll unavailable, falling back to blocking read loop", zap.Error(err))
	}
	return &Hub{log: log, poller: poller, clients: make(map[net.Conn]struct{})}
}

func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Warn("hub: upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	if h.poller == nil {
		go h.readLoop(conn)
		return
	}
	h.watch(conn)
}

// watch arms a one-shot read-ready descriptor for conn: this hub never
// expects client frames, so the callback firing at all means the peer sent
// data or closed the connection, either way a cue to drain and evict.
func (h *Hub) watch(conn net.Conn) {
	desc, err := netpoll.HandleRead(conn)
	if err != nil {
		h.log.Warn("hub: netpoll descriptor failed", zap.Error(err))
		go h.readLoop(conn)
		return
	}

	h.poller.Start(desc, func(netpoll.Event) {
		h.poller.Stop(desc)
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			h.evict(conn)
			return
		}
		h.watch(conn)
	})
}

// readLoop drains and discards client frames (this hub is publish-only);
// it exists to detect disconnects and evict the client. Used only when
// netpoll itself could not be initialized.
func (h *Hub) readLoop(conn net.Conn) {
	defer h.evict(conn)
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			return
		}
	}
}

func (h *Hub) evict(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Publish implements ingest.Publisher: it writes topic-framed binary
// messages to every connected observer, evicting any connection that
// fails to accept a write.
func (h *Hub) Publish(topic string, data []byte) {
	frame := make([]byte, 0, len(topic)+1+len(data))
	frame = append(frame, byte(len(topic)))
	frame = append(frame, topic...)
	frame = append(frame, data...)

	h.mu.Lock()
	conns := make([]net.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := wsutil.WriteServerMessage(c, ws.OpBinary, frame); err != nil {
			h.evict(c)
		}
	}
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.hub.Upgrade(w, r)
}
