package node

import (
	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/protocol"
)

// SendBoot announces the node to the upstream station.
func (e *Engine) SendBoot() error {
	m := protocol.BootMessage(e.devNo)
	return e.SendMessage(&m)
}

// SendStatus reports a fresh random status byte.
func (e *Engine) SendStatus() error {
	m := protocol.StatusMessage(e.devNo, e.random())
	return e.SendMessage(&m)
}

// SendMessage hands m to the radio for the upstream peer. It does not wait
// for delivery; the outcome reaches the send observer.
func (e *Engine) SendMessage(m *protocol.Message) error {
	if err := e.radio.Send(e.upstream, m.Bytes()); err != nil {
		e.stats.TxError.Add(1)
		log.Error().Err(err).Stringer("opcode", m.Opcode()).Str("dst", e.upstream.String()).Msg("tx: send failed")
		return err
	}
	e.stats.TxQueued.Add(1)
	log.Debug().Stringer("opcode", m.Opcode()).Hex("msg", m.Bytes()).Msg("tx: queued")
	return nil
}
