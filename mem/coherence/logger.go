package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

// ProtocolLogger is a hook that prints every protocol step.
type ProtocolLogger struct {
	logger *log.Logger
}

// NewProtocolLogger returns a ProtocolLogger that writes into logger.
func NewProtocolLogger(logger *log.Logger) *ProtocolLogger {
	return &ProtocolLogger{logger: logger}
}

// Func writes one line per step: cycle, access, address, module and step.
func (h *ProtocolLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosStep {
		return
	}

	info, ok := ctx.Item.(StepInfo)
	if !ok {
		return
	}

	h.logger.Printf("%d %d 0x%x %s %s",
		info.Cycle, info.AccessID, info.Address, info.Module, info.Step)
}
