package simulation

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sarchlab/cohsim/mem/coherence"
)

type moduleStatsEntry struct {
	Module string
	Kind   string
	Level  int

	Accesses          uint64
	Hits              uint64
	Reads             uint64
	Writes            uint64
	ReadHits          uint64
	WriteHits         uint64
	BlockingReads     uint64
	NonBlockingReads  uint64
	BlockingWrites    uint64
	NonBlockingWrites uint64
	Evictions         uint64
	ReadRetries       uint64
	WriteRetries      uint64
	NoRetryAccesses   uint64
	NoRetryHits       uint64
	NoRetryReads      uint64
	NoRetryReadHits   uint64
	NoRetryWrites     uint64
	NoRetryWriteHits  uint64

	HitRatio float64
}

func newModuleStatsEntry(m *coherence.Module) moduleStatsEntry {
	st := m.Stats()

	return moduleStatsEntry{
		Module:            m.Name(),
		Kind:              m.Kind().String(),
		Level:             m.Level(),
		Accesses:          st.Accesses,
		Hits:              st.Hits,
		Reads:             st.Reads,
		Writes:            st.Writes,
		ReadHits:          st.ReadHits,
		WriteHits:         st.WriteHits,
		BlockingReads:     st.BlockingReads,
		NonBlockingReads:  st.NonBlockingReads,
		BlockingWrites:    st.BlockingWrites,
		NonBlockingWrites: st.NonBlockingWrites,
		Evictions:         st.Evictions,
		ReadRetries:       st.ReadRetries,
		WriteRetries:      st.WriteRetries,
		NoRetryAccesses:   st.NoRetryAccesses,
		NoRetryHits:       st.NoRetryHits,
		NoRetryReads:      st.NoRetryReads,
		NoRetryReadHits:   st.NoRetryReadHits,
		NoRetryWrites:     st.NoRetryWrites,
		NoRetryWriteHits:  st.NoRetryWriteHits,
		HitRatio:          st.HitRatio(),
	}
}

type networkTrafficEntry struct {
	Network        string
	Transfers      uint64
	Bytes          uint64
	BusyRejections uint64
	Receives       uint64
}

type messageSizeEntry struct {
	Network string
	Size    int
	Count   uint64
}

// RecordStats writes the module counters into the "module_stats" table and
// the network counters into the "network_traffic" and "message_sizes"
// tables. It does nothing without a recorder or when already done.
func (s *Simulation) RecordStats() {
	if s.dataRecorder == nil || s.statsRecorded {
		return
	}

	s.statsRecorded = true

	s.dataRecorder.CreateTable("module_stats", moduleStatsEntry{})
	s.dataRecorder.CreateTable("network_traffic", networkTrafficEntry{})
	s.dataRecorder.CreateTable("message_sizes", messageSizeEntry{})

	for _, m := range s.system.Modules() {
		s.dataRecorder.InsertData("module_stats", newModuleStatsEntry(m))
	}

	for _, n := range s.system.Networks() {
		st := n.Stats()
		s.dataRecorder.InsertData("network_traffic", networkTrafficEntry{
			Network:        n.Name(),
			Transfers:      st.Transfers,
			Bytes:          st.Bytes,
			BusyRejections: st.BusyRejections,
			Receives:       st.Receives,
		})

		counter := s.traffic[n.Name()]
		sizes := make([]int, 0, len(counter.BySize))
		for size := range counter.BySize {
			sizes = append(sizes, size)
		}

		sort.Ints(sizes)

		for _, size := range sizes {
			s.dataRecorder.InsertData("message_sizes", messageSizeEntry{
				Network: n.Name(),
				Size:    size,
				Count:   counter.BySize[size],
			})
		}
	}

	s.dataRecorder.Flush()
}

// Report prints a table of the module counters followed by the network
// traffic, the protocol steps and the access latency.
func (s *Simulation) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "module\taccesses\thits\tmisses\treads\twrites\t"+
		"evictions\tread retries\twrite retries\thit ratio\t")

	for _, m := range s.system.Modules() {
		st := m.Stats()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\t\n",
			m.Name(), st.Accesses, st.Hits, st.Misses(), st.Reads, st.Writes,
			st.Evictions, st.ReadRetries, st.WriteRetries, st.HitRatio())
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "network\ttransfers\tbytes\tbusy\t")

	for _, n := range s.system.Networks() {
		st := n.Stats()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n",
			n.Name(), st.Transfers, st.Bytes, st.BusyRejections)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "step\tcount\taccesses\t")

	for _, name := range s.steps.GetStepNames() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", name,
			s.steps.GetStepCount(name), s.steps.GetTaskCount(name))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w,
		"\n%d accesses, average latency %.2f cycles, max %d cycles, "+
			"finished at cycle %d\n",
		s.latency.TotalCount(), s.latency.AverageTime(),
		s.latency.MaxTime(), s.engine.CurrentTime())

	return err
}
