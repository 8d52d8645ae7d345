package feed

import (
	"net/http"
	"time"

	"github.com/npezzotti/isupipe/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the only thing a viewer may send: a request for the
// current viewer count of the livestream it watches.
type ClientMessage struct {
	BaseMessage
	Viewers *Viewers `json:"viewers,omitempty"`
	client  *Client  `json:"-"`
}

type Viewers struct{}

type ServerMessage struct {
	BaseMessage
	Response     *Response          `json:"response,omitempty"`
	Livecomment  *types.Livecomment `json:"livecomment,omitempty"`
	Reaction     *types.Reaction    `json:"reaction,omitempty"`
	Notification *Notification      `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Notification struct {
	Presence *Presence `json:"presence,omitempty"`
}

type Presence struct {
	Present      bool  `json:"present"`
	UserId       int64 `json:"user_id"`
	LivestreamId int64 `json:"livestream_id"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func LivecommentMessage(lc types.Livecomment) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Livecomment: &lc,
	}
}

func ReactionMessage(r types.Reaction) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Reaction:    &r,
	}
}

func PresenceMessage(livestreamId, userId int64, present bool) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Presence: &Presence{
				Present:      present,
				UserId:       userId,
				LivestreamId: livestreamId,
			},
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
