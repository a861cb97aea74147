package api

import (
	"net/http"
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

//WsConn is interface for websocket handling in status push
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

//Hub keeps websocket subscriptions by job id
type Hub struct {
	lock      sync.Mutex
	idConns   map[string]map[WsConn]bool
	connIDs   map[WsConn]string
	writeLock sync.Mutex
}

//NewHub creates empty hub
func NewHub() *Hub {
	return &Hub{idConns: make(map[string]map[WsConn]bool), connIDs: make(map[WsConn]string)}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

type websocketHandler struct {
	hub *Hub
}

func (h websocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmdapp.Log.Infof("ws request from %s", r.Host)

	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		cmdapp.Log.Error(errors.Wrap(err, "Can not init ws connection"))
		return
	}
	go h.hub.handleConnection(c)
}

// handleConnection reads job ids from the connection until it fails,
// every read id replaces the previous subscription
func (h *Hub) handleConnection(conn WsConn) {
	defer h.deleteConnection(conn)
	defer conn.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			cmdapp.Log.Debug(errors.Wrap(err, "ws read"))
			break
		}
		h.saveConnection(conn, string(message))
	}
	cmdapp.Log.Debug("handleConnection finish")
}

func (h *Hub) deleteConnection(conn WsConn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.deleteConnectionNoSync(conn)
}

func (h *Hub) deleteConnectionNoSync(conn WsConn) {
	id, found := h.connIDs[conn]
	if found {
		conns, found := h.idConns[id]
		if found {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.idConns, id)
			}
		}
	}
	delete(h.connIDs, conn)
}

func (h *Hub) saveConnection(conn WsConn, id string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.deleteConnectionNoSync(conn)
	h.connIDs[conn] = id
	conns, found := h.idConns[id]
	if !found {
		conns = map[WsConn]bool{}
		h.idConns[id] = conns
	}
	conns[conn] = true
	cmdapp.Log.Debugf("Subscribed to %s, connections: %d", id, len(h.connIDs))
}

func (h *Hub) connections(id string) []WsConn {
	h.lock.Lock()
	defer h.lock.Unlock()
	res := make([]WsConn, 0, len(h.idConns[id]))
	for c := range h.idConns[id] {
		res = append(res, c)
	}
	return res
}

//Send writes v to all connections subscribed to id
func (h *Hub) Send(id string, v interface{}) {
	conns := h.connections(id)
	if len(conns) == 0 {
		return
	}
	h.writeLock.Lock()
	defer h.writeLock.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(v); err != nil {
			cmdapp.Log.Warn(errors.Wrapf(err, "Cannot write to websocket for %s", id))
		}
	}
}
