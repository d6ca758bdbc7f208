package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

const defaultRoom = "lobby"

func (ctl *WSController) handleJoin(sid domain.SessionID, conn *WsConn, data []byte) {
	var p protocol.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, protocol.NewError("bad_payload"))
		return
	}
	roomID := domain.RoomID(p.Room)
	if roomID == "" {
		roomID = defaultRoom
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Msg("join")
	if err := ctl.Orch.Join(sid, roomID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("join failed")
		ctl.sendJSON(conn, protocol.NewError("join failed"))
	}
}

func (ctl *WSController) handleSubmitSong(sid domain.SessionID, conn *WsConn, data []byte) {
	var p protocol.SubmitSongPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad submit payload")
		ctl.sendJSON(conn, protocol.NewError("bad_payload"))
		return
	}
	// Contents of videoData are not validated; a broken entry only fails in
	// the client's player.
	ctl.Orch.SubmitSong(sid, p.Video)
}

// handleLeave removes the session from its room without dropping the socket.
func (ctl *WSController) handleLeave(sid domain.SessionID, conn *WsConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, protocol.Envelope{Type: protocol.TypeLeft})
}
