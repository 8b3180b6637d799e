package node

import (
	"errors"

	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio"
	"espnow-bridge/pkg/relayq"
)

// receiveHandler moves frames from the radio into the relay queue. It runs
// on the driver's goroutine and owns the producer half from here on.
func receiveHandler(p *relayq.Producer, stats *Stats) radio.ReceiveHandler {
	return func(info radio.RecvInfo, data []byte) {
		if len(data) > protocol.MaxFrameSize {
			stats.RxOversize.Add(1)
			log.Debug().Str("src", info.Src.String()).Int("len", len(data)).Msg("rx: oversized frame dropped")
			return
		}
		err := p.Enqueue(data)
		switch {
		case err == nil:
			stats.RxQueued.Add(1)
		case errors.Is(err, relayq.ErrEmptyFrame):
			stats.RxEmpty.Add(1)
		default:
			stats.RxOverflow.Add(1)
			log.Warn().Err(err).Str("src", info.Src.String()).Hex("frame", data).Msg("rx: relay queue overflow, frame dropped")
		}
	}
}

// sendObserver reports the outcome of every transmission. Failures are not
// retried.
func sendObserver(stats *Stats) radio.SendHandler {
	return func(dst protocol.Addr, status radio.SendStatus) {
		if status == radio.SendSuccess {
			stats.SendOK.Add(1)
			log.Debug().Str("dst", dst.String()).Msg("tx: delivered")
			return
		}
		stats.SendFailed.Add(1)
		log.Warn().Str("dst", dst.String()).Msg("tx: delivery failed")
	}
}
