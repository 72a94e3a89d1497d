package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sctg-development/photoacoustic-go/internal/processing"
	"github.com/sctg-development/photoacoustic-go/internal/thermal"
)

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBusSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, s.caps.ComputingBus().Snapshot())
}

func (s *Server) handleGraphStructure(c echo.Context) error {
	ids, edges := s.caps.Graph().Nodes()
	return c.JSON(http.StatusOK, map[string]any{"nodes": ids, "edges": edges})
}

func (s *Server) handleGraphStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.caps.Graph().GetStatistics())
}

func (s *Server) handleActionNodes(c echo.Context) error {
	ids := s.caps.Graph().NodesByFamily(processing.FamilyAction)
	return c.JSON(http.StatusOK, map[string]any{"action_nodes": ids})
}

type nodeConfigRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

func (s *Server) handleUpdateNodeConfig(c echo.Context) error {
	id := c.Param("id")
	var req nodeConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	changed, err := s.caps.Graph().UpdateNodeConfig(id, req.Type, req.Params)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]bool{"changed": changed})
}

func (s *Server) handleThermalStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.caps.Thermal().Regulators())
}

func (s *Server) handleThermalHistory(c echo.Context) error {
	id := c.Param("id")
	reg := s.caps.Thermal().Regulator(id)
	if reg == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown regulator"})
	}
	return c.JSON(http.StatusOK, reg.State().History())
}

type thermalCommandRequest struct {
	Kind      string   `json:"kind"`
	Kp        *float64 `json:"kp"`
	Ki        *float64 `json:"ki"`
	Kd        *float64 `json:"kd"`
	SetpointC *float64 `json:"setpoint_c"`
}

func (s *Server) handleThermalCommand(c echo.Context) error {
	id := c.Param("id")
	var req thermalCommandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var kind thermal.CommandKind
	switch req.Kind {
	case "update_pid":
		kind = thermal.CommandUpdatePid
	case "update_setpoint":
		kind = thermal.CommandUpdateSetpoint
	case "stop":
		kind = thermal.CommandStop
	case "resume":
		kind = thermal.CommandResume
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown command kind"})
	}

	ok := s.caps.Thermal().Send(id, thermal.Command{Kind: kind, Kp: req.Kp, Ki: req.Ki, Kd: req.Kd, SetpointC: req.SetpointC})
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown regulator or command channel full"})
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleEventStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.caps.EventBus().Stats())
}

// SystemStats is a trimmed resource snapshot for the /api/v1/system
// endpoint, grounded on the teacher's gopsutil-backed system info handler.
type SystemStats struct {
	Hostname   string    `json:"hostname"`
	Uptime     uint64    `json:"uptime_seconds"`
	NumCPU     int       `json:"num_cpu"`
	CPUPercent float64   `json:"cpu_usage_percent"`
	MemUsed    uint64    `json:"memory_used_bytes"`
	MemTotal   uint64    `json:"memory_total_bytes"`
	MemPercent float64   `json:"memory_usage_percent"`
	SampledAt  time.Time `json:"sampled_at"`
}

func (s *Server) handleSystemStats(c echo.Context) error {
	stats := SystemStats{SampledAt: time.Now()}

	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.Uptime = info.Uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if counts, err := cpu.Counts(true); err == nil {
		stats.NumCPU = counts
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemUsed = vm.Used
		stats.MemTotal = vm.Total
		stats.MemPercent = vm.UsedPercent
	}

	return c.JSON(http.StatusOK, stats)
}
