// Package noc models the interconnects that link a module with the modules
// directly above and below it.
//
// A Network only accounts for timing. It never inspects the payload of a
// message; the sender decides what happens when the message arrives.
package noc

import (
	"fmt"
	"log"

	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/timing"
)

// Hook positions raised by a Network. The hook item is the *Message.
var (
	HookPosNetSend    = &hooking.HookPos{Name: "NetSend"}
	HookPosNetBusy    = &hooking.HookPos{Name: "NetBusy"}
	HookPosNetReceive = &hooking.HookPos{Name: "NetReceive"}
)

// A Node is an end point of a network.
type Node struct {
	name  string
	index int
	net   *Network

	outBusyUntil timing.VTimeInCycle
	inBufferUsed int
}

// Name returns the name of the node.
func (n *Node) Name() string {
	return n.name
}

// Index returns the position of the node in its network.
func (n *Node) Index() int {
	return n.index
}

// Network returns the network that the node is attached to.
func (n *Node) Network() *Network {
	return n.net
}

// A Message is a transfer in flight between two nodes.
type Message struct {
	ID         idgen.ID
	Src, Dst   *Node
	Size       int
	SendTime   timing.VTimeInCycle
	ArriveTime timing.VTimeInCycle

	received bool
}

// Stats are the traffic counters of a network.
type Stats struct {
	Transfers      uint64
	Bytes          uint64
	BusyRejections uint64
	Receives       uint64
}

// A Network connects a set of nodes with a fixed latency, a per-node output
// bandwidth and a per-node input buffer.
type Network struct {
	*hooking.HookableBase

	name      string
	engine    timing.EventScheduler
	ids       idgen.Generator
	nodes     []*Node
	latency   int
	bandwidth int
	bufSize   int

	stats Stats
}

// Name returns the name of the network.
func (n *Network) Name() string {
	return n.name
}

// Nodes returns all the nodes attached to the network.
func (n *Network) Nodes() []*Node {
	return n.nodes
}

// Stats returns a copy of the traffic counters.
func (n *Network) Stats() Stats {
	return n.stats
}

// AddNode attaches a new end point to the network.
func (n *Network) AddNode(name string) *Node {
	node := &Node{
		name:  name,
		index: len(n.nodes),
		net:   n,
	}
	n.nodes = append(n.nodes, node)

	return node
}

// TrySend starts to transfer size bytes from src to dst.
//
// When the transfer is accepted, onArrive is delivered to h once the message
// reaches dst and the message is returned with true. When the network is
// busy, onRetry is delivered to h at a cycle when sending may succeed, and
// false is returned.
func (n *Network) TrySend(
	src, dst *Node,
	size int,
	h timing.Handler,
	onArrive, onRetry any,
) (*Message, bool) {
	n.mustOwnNodes(src, dst)
	n.mustFitInBuffer(size)

	now := n.engine.CurrentTime()

	if src.outBusyUntil > now {
		n.reject(src, dst, size, now, src.outBusyUntil, h, onRetry)
		return nil, false
	}

	if dst.inBufferUsed+size > n.bufSize {
		n.reject(src, dst, size, now, now+1, h, onRetry)
		return nil, false
	}

	transferCycles := timing.VTimeInCycle((size + n.bandwidth - 1) / n.bandwidth)
	msg := &Message{
		ID:         n.ids.Generate(),
		Src:        src,
		Dst:        dst,
		Size:       size,
		SendTime:   now,
		ArriveTime: now + transferCycles + timing.VTimeInCycle(n.latency),
	}

	src.outBusyUntil = now + transferCycles
	dst.inBufferUsed += size

	n.stats.Transfers++
	n.stats.Bytes += uint64(size)

	n.engine.Schedule(timing.ScheduledEvent{
		Event:   onArrive,
		Time:    msg.ArriveTime,
		Handler: h,
	})

	n.invoke(HookPosNetSend, msg)

	return msg, true
}

func (n *Network) reject(
	src, dst *Node,
	size int,
	now, retryAt timing.VTimeInCycle,
	h timing.Handler,
	onRetry any,
) {
	n.stats.BusyRejections++

	n.engine.Schedule(timing.ScheduledEvent{
		Event:   onRetry,
		Time:    retryAt,
		Handler: h,
	})

	n.invoke(HookPosNetBusy, &Message{
		Src:      src,
		Dst:      dst,
		Size:     size,
		SendTime: now,
	})
}

// Receive removes an arrived message from the input buffer of node.
func (n *Network) Receive(node *Node, msg *Message) {
	if msg.Dst != node {
		log.Panicf("noc: %s receives a message addressed to %s",
			node.name, msg.Dst.name)
	}

	if msg.received {
		log.Panicf("noc: message %d received twice at %s", msg.ID, node.name)
	}

	if n.engine.CurrentTime() < msg.ArriveTime {
		log.Panicf("noc: message %d received at %s before it arrives",
			msg.ID, node.name)
	}

	msg.received = true
	node.inBufferUsed -= msg.Size
	n.stats.Receives++

	n.invoke(HookPosNetReceive, msg)
}

func (n *Network) invoke(pos *hooking.HookPos, msg *Message) {
	if n.NumHooks() == 0 {
		return
	}

	n.InvokeHook(hooking.HookCtx{
		Domain: n,
		Pos:    pos,
		Item:   msg,
	})
}

func (n *Network) mustOwnNodes(src, dst *Node) {
	if src.net != n || dst.net != n {
		panic(fmt.Sprintf("noc: %s -> %s is not a route on %s",
			src.name, dst.name, n.name))
	}

	if src == dst {
		panic(fmt.Sprintf("noc: %s sends to itself", src.name))
	}
}

func (n *Network) mustFitInBuffer(size int) {
	if size <= 0 || size > n.bufSize {
		panic(fmt.Sprintf("noc: message of %d bytes can never fit the "+
			"%d-byte buffers of %s", size, n.bufSize, n.name))
	}
}
