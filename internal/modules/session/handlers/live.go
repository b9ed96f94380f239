package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// LiveHub fans session change notifications out to websocket subscribers.
//
// Change hooks fire while session locks may still be held, so the hub never
// reads session state inside a notification: it only flips a per-subscriber
// dirty signal, and each subscriber goroutine builds its own snapshot
// afterwards. Signals are buffered-one, so bursts coalesce into a single
// refresh.
type LiveHub struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{} // session id -> subscriber signals
}

// NewLiveHub creates an empty hub.
func NewLiveHub(log zerolog.Logger) *LiveHub {
	return &LiveHub{
		log:  log.With().Str("component", "live").Logger(),
		subs: make(map[string]map[chan struct{}]struct{}),
	}
}

// Notify wakes every subscriber of the session. Wired into the registry as
// its session-change hook, so hooks exist before a session is reachable.
func (hub *LiveHub) Notify(sessionID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range hub.subs[sessionID] {
		select {
		case ch <- struct{}{}:
		default: // subscriber already has a pending refresh
		}
	}
}

func (hub *LiveHub) subscribe(sessionID string) chan struct{} {
	ch := make(chan struct{}, 1)
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.subs[sessionID] == nil {
		hub.subs[sessionID] = make(map[chan struct{}]struct{})
	}
	hub.subs[sessionID][ch] = struct{}{}
	return ch
}

func (hub *LiveHub) unsubscribe(sessionID string, ch chan struct{}) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.subs[sessionID], ch)
	if len(hub.subs[sessionID]) == 0 {
		delete(hub.subs, sessionID)
	}
}

// liveUpdate is one websocket frame: the session's phase, clock, and current
// standings.
type liveUpdate struct {
	Phase            domain.Phase              `json:"phase"`
	RemainingSeconds *int                      `json:"remaining_seconds,omitempty"`
	Leaderboard      []domain.LeaderboardEntry `json:"leaderboard"`
}

func buildLiveUpdate(s *session.Session, now time.Time) liveUpdate {
	update := liveUpdate{
		Phase:       s.Phase(),
		Leaderboard: s.Leaderboard(),
	}
	if remaining, ok := s.RemainingSeconds(now); ok {
		update.RemainingSeconds = &remaining
	}
	return update
}

// HandleLive upgrades to a websocket and streams leaderboard snapshots: one
// immediately, then one per committed action or phase transition.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// We never expect client frames; CloseRead gives us a context that ends
	// when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	ch := h.live.subscribe(s.ID())
	defer h.live.unsubscribe(s.ID(), ch)

	if err := wsjson.Write(ctx, conn, buildLiveUpdate(s, time.Now().UTC())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ch:
			if err := wsjson.Write(ctx, conn, buildLiveUpdate(s, time.Now().UTC())); err != nil {
				return
			}
		}
	}
}
