// Package monitoring turns a running simulation into a small HTTP server that
// reports the current cycle, the module counters and the network traffic.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine     timing.Engine
	system     *coherence.System
	portNumber int
	listener   net.Listener

	profileDuration time.Duration

	pausedLock sync.Mutex
	paused     bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{profileDuration: time.Second}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterSystem registers the cache hierarchy to report on.
func (m *Monitor) RegisterSystem(s *coherence.System) {
	m.system = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the progress report.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pause", m.pauseEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/continue", m.continueEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/now", m.now)
	api.HandleFunc("/modules", m.listModules)
	api.HandleFunc("/modules/{name}", m.moduleDetails)
	api.HandleFunc("/modules/{name}/state", m.moduleState)
	api.HandleFunc("/modules/{name}/field/{path}", m.moduleField)
	api.HandleFunc("/networks", m.listNetworks)
	api.HandleFunc("/progress", m.listProgressBars)
	api.HandleFunc("/resource", m.listResources)
	api.HandleFunc("/profile", m.collectProfile)

	return r
}

// StartServer starts serving the monitor in the background and returns the
// URL it listens on.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Panic(err)
		}
	}()

	return url
}

// StopServer closes the listener started by StartServer.
func (m *Monitor) StopServer() {
	if m.listener == nil {
		return
	}

	dieOnErr(m.listener.Close())
	m.listener = nil
}

// OpenInBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenInBrowser(url string) error {
	return browser.OpenURL(url + "/api/modules")
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.pausedLock.Lock()
	defer m.pausedLock.Unlock()

	if !m.paused {
		m.engine.Pause()
		m.paused = true
	}

	writeJSON(w, map[string]bool{"paused": true})
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.pausedLock.Lock()
	defer m.pausedLock.Unlock()

	if m.paused {
		m.engine.Continue()
		m.paused = false
	}

	writeJSON(w, map[string]bool{"paused": false})
}

// snapshot runs f while no event is being handled.
func (m *Monitor) snapshot(f func()) {
	m.pausedLock.Lock()
	defer m.pausedLock.Unlock()

	if !m.paused {
		m.engine.Pause()
		defer m.engine.Continue()
	}

	f()
}

type nowRsp struct {
	Now    uint64 `json:"now"`
	Paused bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	var rsp nowRsp

	m.snapshot(func() {
		rsp.Now = uint64(m.engine.CurrentTime())
		rsp.Paused = m.paused
	})

	writeJSON(w, rsp)
}

type moduleRsp struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Level    int             `json:"level"`
	Lower    string          `json:"lower,omitempty"`
	Upper    []string        `json:"upper,omitempty"`
	HitRatio float64         `json:"hit_ratio"`
	Stats    coherence.Stats `json:"stats"`
	InFlight []uint64        `json:"in_flight,omitempty"`
}

func newModuleRsp(mod *coherence.Module, withInFlight bool) moduleRsp {
	stats := mod.Stats()
	rsp := moduleRsp{
		Name:     mod.Name(),
		Kind:     mod.Kind().String(),
		Level:    mod.Level(),
		HitRatio: stats.HitRatio(),
		Stats:    stats,
	}

	if mod.Lower() != nil {
		rsp.Lower = mod.Lower().Name()
	}

	for _, u := range mod.Upper() {
		rsp.Upper = append(rsp.Upper, u.Name())
	}

	if withInFlight {
		for _, id := range mod.InFlightAccesses() {
			rsp.InFlight = append(rsp.InFlight, uint64(id))
		}
	}

	return rsp
}

func (m *Monitor) listModules(w http.ResponseWriter, _ *http.Request) {
	var rsp []moduleRsp

	m.snapshot(func() {
		for _, mod := range m.system.Modules() {
			rsp = append(rsp, newModuleRsp(mod, false))
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) findModuleOr404(
	w http.ResponseWriter,
	r *http.Request,
) *coherence.Module {
	name := mux.Vars(r)["name"]

	mod, found := m.system.Module(name)
	if !found {
		http.Error(w, fmt.Sprintf("module %s not found", name),
			http.StatusNotFound)
		return nil
	}

	return mod
}

func (m *Monitor) moduleDetails(w http.ResponseWriter, r *http.Request) {
	mod := m.findModuleOr404(w, r)
	if mod == nil {
		return
	}

	var rsp moduleRsp

	m.snapshot(func() {
		rsp = newModuleRsp(mod, true)
	})

	writeJSON(w, rsp)
}

// moduleState dumps the internal state of a module, one level deep. Deeper
// levels are reached through moduleField.
func (m *Monitor) moduleState(w http.ResponseWriter, r *http.Request) {
	mod := m.findModuleOr404(w, r)
	if mod == nil {
		return
	}

	m.serialize(w, mod, nil)
}

// moduleField dumps one field of a module. The path is a dot-separated list
// of field names, such as "stats" or "cache.sets".
func (m *Monitor) moduleField(w http.ResponseWriter, r *http.Request) {
	mod := m.findModuleOr404(w, r)
	if mod == nil {
		return
	}

	m.serialize(w, mod, strings.Split(mux.Vars(r)["path"], "."))
}

func (m *Monitor) serialize(w http.ResponseWriter, root any, path []string) {
	buf := bytes.NewBuffer(nil)

	var err error

	m.snapshot(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(root)
		serializer.SetMaxDepth(1)

		if len(path) > 0 {
			if err = serializer.SetEntryPoint(path); err != nil {
				return
			}
		}

		err = serializer.Serialize(buf)
	})

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

type networkRsp struct {
	Name  string    `json:"name"`
	Nodes []string  `json:"nodes"`
	Stats noc.Stats `json:"stats"`
}

func (m *Monitor) listNetworks(w http.ResponseWriter, _ *http.Request) {
	var rsp []networkRsp

	m.snapshot(func() {
		for _, n := range m.system.Networks() {
			entry := networkRsp{Name: n.Name(), Stats: n.Stats()}
			for _, node := range n.Nodes() {
				entry.Nodes = append(entry.Nodes, node.Name())
			}

			rsp = append(rsp, entry)
		}
	})

	sort.Slice(rsp, func(i, j int) bool { return rsp[i].Name < rsp[j].Name })

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.report())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

// collectProfile samples the CPU usage of the process while the simulation
// keeps running.
func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
