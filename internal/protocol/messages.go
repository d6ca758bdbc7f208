// Package protocol defines the websocket wire contract between the server
// and karaoke clients. Inbound frames carry a "type" discriminator; outbound
// events mirror that shape so one client-side switch can route everything.
package protocol

import (
	"encoding/json"

	"github.com/openmic/karaoke/internal/domain"
)

// Inbound message types.
const (
	TypeJoin            = "join"
	TypeSubmitSong      = "submit-song"
	TypeClientReady     = "client-ready"
	TypeSignal          = "signal"
	TypeDisconnectVideo = "disconnect-video"
	TypeLeave           = "leave"
	TypePing            = "ping"
)

// Outbound event types.
const (
	TypeRoomData          = "room-data"
	TypeSongAdded         = "song-added-success"
	TypeNotification      = "notification"
	TypeNotificationClear = "notification-clear"
	TypeVideoControl      = "video-control"
	TypePeer              = "peer"
	TypeDestroy           = "destroy"
	TypePong              = "pong"
	TypeError             = "error"
	TypeLeft              = "left"
)

// ControlCode is the playback directive carried by a video-control event.
type ControlCode string

const (
	CodePlaying ControlCode = "PLAYING"
	CodeEnded   ControlCode = "ENDED"
)

// Envelope is the minimal inbound frame used to pick a handler.
type Envelope struct {
	Type string `json:"type"`
}

type JoinPayload struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type SubmitSongPayload struct {
	Type  string           `json:"type"`
	Video domain.VideoData `json:"videoData"`
}

// SignalPayload is relayed verbatim; the server never inspects Signal.
type SignalPayload struct {
	Type   string          `json:"type"`
	Signal json.RawMessage `json:"signal"`
	PeerID string          `json:"peerId"`
}

// RoomSnapshot is the minimal room state a client needs to render its view.
type RoomSnapshot struct {
	CurrentSong   *domain.Song `json:"currentSong"`
	CurrentSinger *string      `json:"currentSinger"`
	UpNext        *domain.Song `json:"upNext"`
	Position      float64      `json:"position"`
}

type RoomDataEvent struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
	RoomSnapshot
}

type SongAddedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type NotificationEvent struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Message string `json:"message"`
}

type NotificationClearEvent struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

type VideoControlEvent struct {
	Type string      `json:"type"`
	Code ControlCode `json:"code"`
}

// PeerEvent introduces two sessions to each other. The initiator side
// opens the WebRTC offer; the other side waits for it.
type PeerEvent struct {
	Type      string `json:"type"`
	PeerID    string `json:"peerId"`
	Initiator bool   `json:"initiator"`
}

type SignalEvent struct {
	Type   string          `json:"type"`
	Signal json.RawMessage `json:"signal"`
	PeerID string          `json:"peerId"`
}

type DestroyEvent struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewRoomData(room domain.RoomID, snap RoomSnapshot) RoomDataEvent {
	return RoomDataEvent{Type: TypeRoomData, Room: room, RoomSnapshot: snap}
}

func NewSongAdded(message string) SongAddedEvent {
	return SongAddedEvent{Type: TypeSongAdded, Message: message}
}

func NewNotification(seq uint64, message string) NotificationEvent {
	return NotificationEvent{Type: TypeNotification, Seq: seq, Message: message}
}

func NewNotificationClear(seq uint64) NotificationClearEvent {
	return NotificationClearEvent{Type: TypeNotificationClear, Seq: seq}
}

func NewVideoControl(code ControlCode) VideoControlEvent {
	return VideoControlEvent{Type: TypeVideoControl, Code: code}
}

func NewPeer(peer domain.SessionID, initiator bool) PeerEvent {
	return PeerEvent{Type: TypePeer, PeerID: string(peer), Initiator: initiator}
}

func NewSignal(from domain.SessionID, signal json.RawMessage) SignalEvent {
	return SignalEvent{Type: TypeSignal, Signal: signal, PeerID: string(from)}
}

func NewDestroy(peer domain.SessionID) DestroyEvent {
	return DestroyEvent{Type: TypeDestroy, PeerID: string(peer)}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Error: message}
}
