package protocol

import (
	"espnow-bridge/pkg/protocol/spec"
)

// MessageHandler acts on a frame addressed to this node and may fill out with a
// response. Leaving out untouched means no response.
type MessageHandler func(f *Frame, out *Message)

type MessageHandlerMap map[spec.Opcode]MessageHandler

// Handle runs the handler registered for the frame's opcode. Opcodes without a
// handler, Unrecognized included, are a no-op. It reports whether a handler ran.
func (mh MessageHandlerMap) Handle(f *Frame, out *Message) bool {
	fn, ok := mh[f.Opcode()]
	if !ok {
		return false
	}
	fn(f, out)
	return true
}
