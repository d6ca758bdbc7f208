package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

func (ctl *WSController) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, sid domain.SessionID, sess core.MemberSession, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid, sess)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(sid, c, data)
		}
	}
}

func (ctl *WSController) handleFrame(sid domain.SessionID, c *WsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(sid, c, data)
	case protocol.TypeSubmitSong:
		ctl.handleSubmitSong(sid, c, data)
	case protocol.TypeClientReady:
		ctl.Orch.ClientReady(sid)
	case protocol.TypeSignal:
		ctl.handleSignal(sid, data)
	case protocol.TypeDisconnectVideo:
		ctl.Orch.DisconnectVideo(sid)
	case protocol.TypeLeave:
		ctl.handleLeave(sid, c)
	case protocol.TypePing:
		ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypePong})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *WSController) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
