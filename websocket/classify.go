package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/models"
	"github.com/aukilabs/quadmesh/voxel"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// DefaultMaxPoints is the number of points a classify request may carry when
// ClassifyHandler does not set a limit.
const DefaultMaxPoints = 4096

// ClassifyHandler answers point classification requests against the meshes
// of a store.
type ClassifyHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The meshes that can be queried.
	Meshes *models.MeshStore

	// The number of points accepted in a single request.
	MaxPoints int

	conn     *websocket.Conn
	clientID string
}

func (h *ClassifyHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *ClassifyHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

// HandleClassify classifies the request points. Request errors are sent back
// to the client and keep the connection open.
func (h *ClassifyHandler) HandleClassify(ctx context.Context, respond ResponseSender, msg Msg) error {
	flags, err := h.classify(msg)
	if err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeClassifyResponse,
		RequestID: msg.RequestID,
		MeshID:    msg.MeshID,
		Flags:     flags,
	})
	return nil
}

func (h *ClassifyHandler) classify(msg Msg) ([]voxel.Flag, error) {
	maxPoints := h.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	if len(msg.Points) > maxPoints {
		return nil, errors.New("too many points").
			WithType(ErrTypeTooManyPoints).
			WithTag("points", len(msg.Points)).
			WithTag("max_points", maxPoints)
	}

	m, err := h.Meshes.Get(msg.MeshID)
	if err != nil {
		return nil, err
	}

	flags := make([]voxel.Flag, len(msg.Points))
	for i, p := range msg.Points {
		flags[i] = m.Voxelizer.ClassifyPoint(mesh.Vec{X: p[0], Y: p[1], Z: p[2]})
	}
	return flags, nil
}

func (h *ClassifyHandler) HandleDisconnect(err error) {
}

func (h *ClassifyHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *ClassifyHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *ClassifyHandler) Close() {
}

func (h *ClassifyHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ClassifyHandler) GetClientID() string {
	return h.clientID
}
