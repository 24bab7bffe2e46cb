// internal/httpserver/ws.go
//
// Live event feed for the rendering collaborator: every engine event
// (session lifecycle, rack changes, guess outcomes) goes out to each
// connected websocket as JSON. Broadcast happens on the event loop, so it
// must never block: a subscriber that cannot keep up loses events.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/stephen5ng/blockwords/internal/game"
)

const subscriberBuffer = 64

type subscriber struct {
	events chan game.Event
}

type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) add() *subscriber {
	sub := &subscriber{events: make(chan game.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// broadcast fans out one event without blocking. Full subscribers drop it.
func (h *hub) broadcast(e game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.events <- e:
		default:
			log.Debug().Str("type", e.Type).Msg("slow websocket subscriber, dropping event")
		}
	}
}

// handleWS upgrades the connection and streams events until the client
// goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // renderer runs on another local port
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	sub := s.hub.add()
	defer s.hub.remove(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case e := <-sub.events:
			if err := wsjson.Write(ctx, conn, e); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
