package coherence

import "github.com/sarchlab/cohsim/idgen"

// Protocol identifies one of the transaction state machines.
type Protocol int

// All the protocols.
const (
	ProtocolFindAndLock Protocol = iota
	ProtocolLoad
	ProtocolStore
	ProtocolEvict
	ProtocolReadRequest
	ProtocolWriteRequest
	ProtocolInvalidate
)

var protocolNames = [...]string{
	ProtocolFindAndLock:  "find_and_lock",
	ProtocolLoad:         "load",
	ProtocolStore:        "store",
	ProtocolEvict:        "evict",
	ProtocolReadRequest:  "read_request",
	ProtocolWriteRequest: "write_request",
	ProtocolInvalidate:   "invalidate",
}

func (p Protocol) String() string {
	return protocolNames[p]
}

type step int

const (
	stepFindAndLock step = iota
	stepFindAndLockWake
	stepFindAndLockAction
	stepFindAndLockFinish

	stepLoad
	stepLoadLock
	stepLoadAction
	stepLoadMiss
	stepLoadFinish

	stepStore
	stepStoreLock
	stepStoreAction
	stepStoreFinish

	stepEvict
	stepEvictInvalid
	stepEvictAction
	stepEvictReceive
	stepEvictWriteback
	stepEvictWritebackExclusive
	stepEvictWritebackFinish
	stepEvictProcess
	stepEvictReply
	stepEvictReplyReceive
	stepEvictFinish

	stepReadRequest
	stepReadRequestReceive
	stepReadRequestAction
	stepReadRequestUpdown
	stepReadRequestUpdownMiss
	stepReadRequestUpdownFinish
	stepReadRequestDownup
	stepReadRequestDownupFinish
	stepReadRequestReply
	stepReadRequestFinish

	stepWriteRequest
	stepWriteRequestReceive
	stepWriteRequestAction
	stepWriteRequestExclusive
	stepWriteRequestUpdown
	stepWriteRequestUpdownFinish
	stepWriteRequestDownup
	stepWriteRequestReply
	stepWriteRequestFinish

	stepInvalidate
	stepInvalidateFinish

	numSteps
)

type stepInfo struct {
	protocol Protocol
	name     string
}

var steps = [numSteps]stepInfo{
	stepFindAndLock:       {ProtocolFindAndLock, "start"},
	stepFindAndLockWake:   {ProtocolFindAndLock, "wake"},
	stepFindAndLockAction: {ProtocolFindAndLock, "action"},
	stepFindAndLockFinish: {ProtocolFindAndLock, "finish"},

	stepLoad:       {ProtocolLoad, "start"},
	stepLoadLock:   {ProtocolLoad, "lock"},
	stepLoadAction: {ProtocolLoad, "action"},
	stepLoadMiss:   {ProtocolLoad, "miss"},
	stepLoadFinish: {ProtocolLoad, "finish"},

	stepStore:       {ProtocolStore, "start"},
	stepStoreLock:   {ProtocolStore, "lock"},
	stepStoreAction: {ProtocolStore, "action"},
	stepStoreFinish: {ProtocolStore, "finish"},

	stepEvict:                   {ProtocolEvict, "start"},
	stepEvictInvalid:            {ProtocolEvict, "invalid"},
	stepEvictAction:             {ProtocolEvict, "action"},
	stepEvictReceive:            {ProtocolEvict, "receive"},
	stepEvictWriteback:          {ProtocolEvict, "writeback"},
	stepEvictWritebackExclusive: {ProtocolEvict, "writeback_exclusive"},
	stepEvictWritebackFinish:    {ProtocolEvict, "writeback_finish"},
	stepEvictProcess:            {ProtocolEvict, "process"},
	stepEvictReply:              {ProtocolEvict, "reply"},
	stepEvictReplyReceive:       {ProtocolEvict, "reply_receive"},
	stepEvictFinish:             {ProtocolEvict, "finish"},

	stepReadRequest:             {ProtocolReadRequest, "start"},
	stepReadRequestReceive:      {ProtocolReadRequest, "receive"},
	stepReadRequestAction:       {ProtocolReadRequest, "action"},
	stepReadRequestUpdown:       {ProtocolReadRequest, "updown"},
	stepReadRequestUpdownMiss:   {ProtocolReadRequest, "updown_miss"},
	stepReadRequestUpdownFinish: {ProtocolReadRequest, "updown_finish"},
	stepReadRequestDownup:       {ProtocolReadRequest, "downup"},
	stepReadRequestDownupFinish: {ProtocolReadRequest, "downup_finish"},
	stepReadRequestReply:        {ProtocolReadRequest, "reply"},
	stepReadRequestFinish:       {ProtocolReadRequest, "finish"},

	stepWriteRequest:             {ProtocolWriteRequest, "start"},
	stepWriteRequestReceive:      {ProtocolWriteRequest, "receive"},
	stepWriteRequestAction:       {ProtocolWriteRequest, "action"},
	stepWriteRequestExclusive:    {ProtocolWriteRequest, "exclusive"},
	stepWriteRequestUpdown:       {ProtocolWriteRequest, "updown"},
	stepWriteRequestUpdownFinish: {ProtocolWriteRequest, "updown_finish"},
	stepWriteRequestDownup:       {ProtocolWriteRequest, "downup"},
	stepWriteRequestReply:        {ProtocolWriteRequest, "reply"},
	stepWriteRequestFinish:       {ProtocolWriteRequest, "finish"},

	stepInvalidate:       {ProtocolInvalidate, "start"},
	stepInvalidateFinish: {ProtocolInvalidate, "finish"},
}

func (s step) protocol() Protocol {
	return steps[s].protocol
}

func (s step) String() string {
	return steps[s].protocol.String() + "/" + steps[s].name
}

// stepEvent resumes a frame at a step.
type stepEvent struct {
	frame idgen.ID
	step  step
}
