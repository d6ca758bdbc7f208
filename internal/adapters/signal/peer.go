package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

// handleSignal forwards an opaque negotiation payload to the addressed
// peer. No response either way; a gone peer is normal churn.
func (ctl *WSController) handleSignal(sid domain.SessionID, data []byte) {
	var p protocol.SignalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		return
	}
	if p.PeerID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("signal without peerId")
		return
	}
	ctl.Orch.Signal(sid, domain.SessionID(p.PeerID), p.Signal)
}
