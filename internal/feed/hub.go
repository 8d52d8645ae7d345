// Package feed pushes new livecomments and reactions to the websocket viewers
// of a livestream.
package feed

import (
	"context"
	"sync"

	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/rs/zerolog"
)

const ViewersMetric = "feed_viewers"

// Broadcaster is what request handlers publish committed writes to.
type Broadcaster interface {
	PublishLivecomment(lc types.Livecomment)
	PublishReaction(r types.Reaction)
}

type broadcast struct {
	livestreamId int64
	msg          *ServerMessage
}

type Hub struct {
	log            *zerolog.Logger
	stats          stats.StatsProvider
	channels       map[int64]map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	broadcastChan  chan *broadcast
	requestChan    chan *ClientMessage
	stopOnce       sync.Once
	stop           chan struct{}
	done           chan struct{}
}

func NewHub(logger *zerolog.Logger, su stats.StatsProvider) *Hub {
	su.RegisterMetric(ViewersMetric)

	return &Hub{
		log:            logger,
		stats:          su,
		channels:       make(map[int64]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		broadcastChan:  make(chan *broadcast, 256),
		requestChan:    make(chan *ClientMessage, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerChan:
			h.addClient(c)
		case c := <-h.deregisterChan:
			h.removeClient(c)
		case b := <-h.broadcastChan:
			h.fanOut(b.livestreamId, b.msg, nil)
		case msg := <-h.requestChan:
			h.handleRequest(msg)
		case <-h.stop:
			h.log.Info().Msg("closing feed connections")
			for livestreamId, clients := range h.channels {
				for c := range clients {
					c.stopClient()
					h.stats.Decr(ViewersMetric)
				}
				delete(h.channels, livestreamId)
			}

			close(h.done)
			return
		}
	}
}

func (h *Hub) PublishLivecomment(lc types.Livecomment) {
	h.publish(lc.Livestream.Id, LivecommentMessage(lc))
}

func (h *Hub) PublishReaction(r types.Reaction) {
	h.publish(r.Livestream.Id, ReactionMessage(r))
}

func (h *Hub) publish(livestreamId int64, msg *ServerMessage) {
	select {
	case h.broadcastChan <- &broadcast{livestreamId: livestreamId, msg: msg}:
	default:
		h.log.Warn().Int64("livestream_id", livestreamId).Msg("broadcast channel full, dropping message")
	}
}

// Register adds c to its livestream channel. It returns false if the hub has
// stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) deregister(c *Client) {
	select {
	case h.deregisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) request(msg *ClientMessage) bool {
	select {
	case h.requestChan <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) addClient(c *Client) {
	clients, ok := h.channels[c.livestreamId]
	if !ok {
		clients = make(map[*Client]struct{})
		h.channels[c.livestreamId] = clients
	}
	clients[c] = struct{}{}
	h.stats.Incr(ViewersMetric)

	h.log.Debug().
		Int64("livestream_id", c.livestreamId).
		Int64("user_id", c.userId).
		Int("viewers", len(clients)).
		Msg("viewer joined")

	h.fanOut(c.livestreamId, PresenceMessage(c.livestreamId, c.userId, true), c)
}

func (h *Hub) removeClient(c *Client) {
	clients, ok := h.channels[c.livestreamId]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}

	delete(clients, c)
	if len(clients) == 0 {
		delete(h.channels, c.livestreamId)
	}
	c.stopClient()
	h.stats.Decr(ViewersMetric)

	h.log.Debug().
		Int64("livestream_id", c.livestreamId).
		Int64("user_id", c.userId).
		Msg("viewer left")

	h.fanOut(c.livestreamId, PresenceMessage(c.livestreamId, c.userId, false), nil)
}

func (h *Hub) handleRequest(msg *ClientMessage) {
	if msg.Viewers != nil {
		msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{
			"viewers": len(h.channels[msg.client.livestreamId]),
		}))
	}
}

// fanOut queues msg for every viewer of the livestream except skip. Slow
// viewers whose queue is full miss the message.
func (h *Hub) fanOut(livestreamId int64, msg *ServerMessage, skip *Client) {
	for c := range h.channels[livestreamId] {
		if c == skip {
			continue
		}
		c.queueMessage(msg)
	}
}

// Shutdown disconnects every viewer and stops the hub.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Info().Msg("received shutdown signal")
	h.stopOnce.Do(func() { close(h.stop) })

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
