// Package trace records the accesses that complete in a cache hierarchy,
// either as a replayable text trace or as rows of a database table.
package trace

import (
	"fmt"
	"log"

	"github.com/sarchlab/cohsim/datarecording"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/mem/coherence"
)

// memoryTransactionEntry represents a finished access in the database.
type memoryTransactionEntry struct {
	ID          string
	Module      string
	What        string
	Address     uint64
	Value       uint64
	IssueCycle  uint64
	FinishCycle uint64
	Retries     int
}

// A tracer is a hook that writes every finished access as a trace line.
type tracer struct {
	logger *log.Logger
}

// NewTracer creates a hook that writes finished accesses into the logger, one
// line each, in the format that accesstrace parses. Loads carry the value
// they returned in a comment, so the output can be replayed.
func NewTracer(logger *log.Logger) hooking.Hook {
	return &tracer{logger: logger}
}

// Func writes the access if the hook is raised at the end of an access.
func (t *tracer) Func(ctx hooking.HookCtx) {
	rsp, ok := accessDone(ctx)
	if !ok {
		return
	}

	line := fmt.Sprintf("%d %s %s 0x%x",
		rsp.IssueCycle, rsp.Module, rsp.Kind, rsp.Address)

	if rsp.Kind == coherence.AccessStore {
		line += fmt.Sprintf(" %d", rsp.Value)
	}

	line += fmt.Sprintf(" # done %d", rsp.FinishCycle)

	if rsp.Kind == coherence.AccessLoad {
		line += fmt.Sprintf(" value %d", rsp.Value)
	}

	if rsp.Retries > 0 {
		line += fmt.Sprintf(" retries %d", rsp.Retries)
	}

	t.logger.Println(line)
}

// A dbTracer is a hook that stores finished accesses into a DataRecorder.
type dbTracer struct {
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates a hook that inserts every finished access into the
// "memory_transactions" table.
func NewDBTracer(dataRecorder datarecording.DataRecorder) hooking.Hook {
	t := &dbTracer{dataRecorder: dataRecorder}

	t.dataRecorder.CreateTable("memory_transactions", memoryTransactionEntry{})

	return t
}

// Func inserts the access if the hook is raised at the end of an access.
func (t *dbTracer) Func(ctx hooking.HookCtx) {
	rsp, ok := accessDone(ctx)
	if !ok {
		return
	}

	t.dataRecorder.InsertData("memory_transactions", memoryTransactionEntry{
		ID:          rsp.AccessID.String(),
		Module:      rsp.Module,
		What:        rsp.Kind.String(),
		Address:     rsp.Address,
		Value:       rsp.Value,
		IssueCycle:  uint64(rsp.IssueCycle),
		FinishCycle: uint64(rsp.FinishCycle),
		Retries:     rsp.Retries,
	})
}

func accessDone(ctx hooking.HookCtx) (coherence.AccessRsp, bool) {
	if ctx.Pos != coherence.HookPosAccessDone {
		return coherence.AccessRsp{}, false
	}

	rsp, ok := ctx.Item.(coherence.AccessRsp)

	return rsp, ok
}
