package node

import "sync/atomic"

// Stats are updated from the driver callbacks and the worker, hence atomics.
type Stats struct {
	RxQueued    atomic.Uint64
	RxOverflow  atomic.Uint64
	RxOversize  atomic.Uint64
	RxEmpty     atomic.Uint64
	Polled      atomic.Uint64
	Malformed   atomic.Uint64
	Unaddressed atomic.Uint64
	Unhandled   atomic.Uint64
	Dispatched  atomic.Uint64
	TxQueued    atomic.Uint64
	TxError     atomic.Uint64
	SendOK      atomic.Uint64
	SendFailed  atomic.Uint64
}

type StatsSnapshot struct {
	RxQueued    uint64 `json:"rx_queued"`
	RxOverflow  uint64 `json:"rx_overflow"`
	RxOversize  uint64 `json:"rx_oversize"`
	RxEmpty     uint64 `json:"rx_empty"`
	Polled      uint64 `json:"polled"`
	Malformed   uint64 `json:"malformed"`
	Unaddressed uint64 `json:"unaddressed"`
	Unhandled   uint64 `json:"unhandled"`
	Dispatched  uint64 `json:"dispatched"`
	TxQueued    uint64 `json:"tx_queued"`
	TxError     uint64 `json:"tx_error"`
	SendOK      uint64 `json:"send_ok"`
	SendFailed  uint64 `json:"send_failed"`

	QueueLen       int    `json:"queue_len"`
	QueueEntries   int    `json:"queue_entries"`
	QueueCapacity  int    `json:"queue_capacity"`
	QueueOverflows uint64 `json:"queue_overflows"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RxQueued:    s.RxQueued.Load(),
		RxOverflow:  s.RxOverflow.Load(),
		RxOversize:  s.RxOversize.Load(),
		RxEmpty:     s.RxEmpty.Load(),
		Polled:      s.Polled.Load(),
		Malformed:   s.Malformed.Load(),
		Unaddressed: s.Unaddressed.Load(),
		Unhandled:   s.Unhandled.Load(),
		Dispatched:  s.Dispatched.Load(),
		TxQueued:    s.TxQueued.Load(),
		TxError:     s.TxError.Load(),
		SendOK:      s.SendOK.Load(),
		SendFailed:  s.SendFailed.Load(),
	}
}
