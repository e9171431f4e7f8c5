package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

func spec(name, lower string, kind coherence.ModuleKind) coherence.ModuleSpec {
	return coherence.ModuleSpec{
		Name:      name,
		Kind:      kind,
		Lower:     lower,
		NumSets:   4,
		NumWays:   2,
		BlockSize: 64,
		Latency:   2,
	}
}

var _ = Describe("Monitor", func() {
	var (
		engine *timing.SerialEngine
		system *coherence.System
		m      *Monitor
		server *httptest.Server
	)

	get := func(path string, v any) int {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		if rsp.StatusCode == http.StatusOK && v != nil {
			Expect(json.NewDecoder(rsp.Body).Decode(v)).To(Succeed())
		}

		return rsp.StatusCode
	}

	getRaw := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		system = coherence.MakeBuilder().
			WithEngine(engine).
			WithModule(spec("mm", "", coherence.KindMainMemory)).
			WithModule(spec("l1", "mm", coherence.KindCache)).
			Build("system")

		_, err := system.Access(coherence.AccessReq{
			Kind:    coherence.AccessLoad,
			Module:  "l1",
			Address: 0x40,
		}, func(coherence.AccessRsp) {})
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Run()).To(Succeed())

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterSystem(system)
		server = httptest.NewServer(m.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should fall back to a random port for privileged ports", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should report the current cycle", func() {
		var rsp nowRsp

		Expect(get("/api/now", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.Now).To(Equal(uint64(engine.CurrentTime())))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should list modules", func() {
		var rsp []moduleRsp

		Expect(get("/api/modules", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].Name).To(Equal("mm"))
		Expect(rsp[0].Kind).To(Equal("main_memory"))
		Expect(rsp[0].Upper).To(Equal([]string{"l1"}))
		Expect(rsp[1].Lower).To(Equal("mm"))
		Expect(rsp[1].Stats.Accesses).To(Equal(uint64(1)))
		Expect(rsp[1].HitRatio).To(Equal(0.0))
	})

	It("should report one module", func() {
		var rsp moduleRsp

		Expect(get("/api/modules/l1", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.Level).To(Equal(1))
		Expect(rsp.InFlight).To(BeEmpty())

		Expect(get("/api/modules/l9", nil)).To(Equal(http.StatusNotFound))
	})

	It("should dump the state of a module", func() {
		status, body := getRaw("/api/modules/l1/state")
		Expect(status).To(Equal(http.StatusOK))
		Expect(json.Valid(body)).To(BeTrue(), string(body))

		status, _ = getRaw("/api/modules/l9/state")
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should dump one field of a module", func() {
		status, body := getRaw("/api/modules/l1/field/stats")
		Expect(status).To(Equal(http.StatusOK))
		Expect(json.Valid(body)).To(BeTrue(), string(body))

		status, _ = getRaw("/api/modules/l9/field/stats")
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should report network traffic", func() {
		var rsp []networkRsp

		Expect(get("/api/networks", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("mm.HighNet"))
		Expect(rsp[0].Nodes).To(HaveLen(2))
		Expect(rsp[0].Stats.Transfers).To(Equal(uint64(2)))
	})

	It("should pause and continue the engine", func() {
		var rsp nowRsp

		Expect(get("/api/pause", nil)).To(Equal(http.StatusOK))
		Expect(get("/api/now", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.Paused).To(BeTrue())

		Expect(get("/api/continue", nil)).To(Equal(http.StatusOK))
		Expect(get("/api/now", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("accesses", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)
		bar.IncrementFinished(2)

		var rsp []progressBarRsp
		Expect(get("/api/progress", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("accesses"))
		Expect(rsp[0].Finished).To(Equal(uint64(5)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp).To(BeEmpty())
	})

	It("should report process resources", func() {
		var rsp resourceRsp

		Expect(get("/api/resource", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		m.WithProfileDuration(20 * time.Millisecond)

		var rsp struct {
			Period int64
		}

		Expect(get("/api/profile", &rsp)).To(Equal(http.StatusOK))
		Expect(rsp.Period).To(BeNumerically(">", 0))
	})
})
