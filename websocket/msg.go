package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmesh/voxel"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeInvalidMsg     = "ws_invalid_msg"
	ErrTypeUnsupportedMsg = "ws_unsupported_msg"
	ErrTypeTooManyPoints  = "ws_too_many_points"

	// HeaderClientID is the request header carrying the client id. A random
	// one is generated when it is missing.
	HeaderClientID = "X-Client-Id"
)

type MsgType string

const (
	MsgTypePing             MsgType = "ping"
	MsgTypePong             MsgType = "pong"
	MsgTypeClassify         MsgType = "classify"
	MsgTypeClassifyResponse MsgType = "classify_response"
	MsgTypeError            MsgType = "error"
)

// Msg is a JSON message exchanged with a client. Requests carry a request id
// that is echoed in their response.
type Msg struct {
	Type      MsgType      `json:"type"`
	RequestID uint32       `json:"request_id,omitempty"`
	MeshID    string       `json:"mesh_id,omitempty"`
	Points    [][3]float64 `json:"points,omitempty"`
	Flags     []voxel.Flag `json:"flags,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorType string       `json:"error_type,omitempty"`
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// NewErrorMsg returns the error response to a request.
func NewErrorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Error:     err.Error(),
		ErrorType: errors.Type(err),
	}
}

// Receiver reads the next message. It returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages for the client.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a JSON message from the connection.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Send writes a JSON message as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.TypeString()).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}
