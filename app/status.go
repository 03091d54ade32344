package app

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"wildmap/data"
)

var startTime = time.Now()

// SourcesFunc is set by main to report the configured data sources
var SourcesFunc func() (locations, markers string)

// SessionsFunc is set by main to report the number of open map sessions
var SessionsFunc func() int

// StatusCheck represents a single status check result
type StatusCheck struct {
	Name    string `json:"name"`
	Status  bool   `json:"status"`
	Details string `json:"details,omitempty"`
}

// StatusResponse represents the full status response
type StatusResponse struct {
	Healthy   bool           `json:"healthy"`
	Uptime    string         `json:"uptime"`
	GoVersion string         `json:"go_version"`
	Memory    MemoryStatus   `json:"memory"`
	Disk      DiskStatus     `json:"disk"`
	Sessions  int            `json:"sessions"`
	Services  []StatusCheck  `json:"services"`
	Fetches   FetchStatus    `json:"fetches"`
	SysLog    []*SysLogEntry `json:"syslog,omitempty"`
	APILog    []*APILogEntry `json:"apilog,omitempty"`
}

// FetchStatus summarises the persisted fetch history
type FetchStatus struct {
	Total  int           `json:"total"`
	Failed int           `json:"failed"`
	Recent []*data.Fetch `json:"recent"`
}

// DiskStatus represents disk usage
type DiskStatus struct {
	UsedGB  float64 `json:"used_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// MemoryStatus represents memory usage
type MemoryStatus struct {
	Alloc      uint64 `json:"alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// StatusHandler handles the /status endpoint
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	// Quick health check endpoint
	if r.URL.Query().Get("quick") == "1" {
		w.Header().Set("Content-Type", "application/json")
		status := buildStatus(0)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"healthy":  status.Healthy,
			"sessions": status.Sessions,
		})
		return
	}

	status := buildStatus(20)

	if WantsJSON(r) {
		RespondJSON(w, status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(RenderHTML("Status", "Server status and recent fetches", renderStatusHTML(status))))
}

func buildStatus(logLimit int) StatusResponse {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var services []StatusCheck

	if SourcesFunc != nil {
		locations, markers := SourcesFunc()
		services = append(services,
			StatusCheck{Name: "Locations", Status: locations != "", Details: locations},
			StatusCheck{Name: "Markers", Status: markers != "", Details: markers},
		)
	}

	s3 := os.Getenv("MINIO_ENDPOINT")
	services = append(services, StatusCheck{
		Name:    "Object Storage",
		Status:  s3 != "",
		Details: s3,
	})

	fetches := FetchStatus{}
	dbOK := true
	total, failed, err := data.FetchStats()
	if err != nil {
		Log("status", "fetch stats: %v", err)
		dbOK = false
	}
	fetches.Total, fetches.Failed = total, failed
	if recent, err := data.RecentFetches(10); err == nil {
		fetches.Recent = recent
	}
	services = append(services, StatusCheck{
		Name:    "Fetch History",
		Status:  dbOK,
		Details: fmt.Sprintf("%d fetches, %d failed", total, failed),
	})

	// the last fetch decides health: a source that is failing right now
	healthy := dbOK
	if len(fetches.Recent) > 0 && fetches.Recent[0].Error != "" {
		healthy = false
	}

	sessions := 0
	if SessionsFunc != nil {
		sessions = SessionsFunc()
	}

	diskUsed, diskTotal, diskPercent := getDiskUsage()

	status := StatusResponse{
		Healthy:   healthy,
		Uptime:    formatUptime(time.Since(startTime)),
		GoVersion: runtime.Version(),
		Memory: MemoryStatus{
			Alloc:      m.Alloc / 1024 / 1024,
			Sys:        m.Sys / 1024 / 1024,
			NumGC:      m.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
		Disk: DiskStatus{
			UsedGB:  float64(diskUsed) / 1024 / 1024 / 1024,
			TotalGB: float64(diskTotal) / 1024 / 1024 / 1024,
			Percent: diskPercent,
		},
		Sessions: sessions,
		Services: services,
		Fetches:  fetches,
	}
	if logLimit > 0 {
		status.SysLog = limit(GetSysLog(), logLimit)
		status.APILog = limit(GetAPILog(), logLimit)
	}
	return status
}

func limit[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// getDiskUsage returns disk usage for the data directory
func getDiskUsage() (used, total uint64, percent float64) {
	dir := os.ExpandEnv("$HOME/.wildmap/data")

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, 0, 0
	}

	total = stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	used = total - free
	if total > 0 {
		percent = float64(used) / float64(total) * 100
	}
	return
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func statusIcon(ok bool) (icon, class string) {
	if ok {
		return "✓", "status-ok"
	}
	return "✗", "status-error"
}

func renderStatusHTML(status StatusResponse) string {
	var sb strings.Builder

	icon, class := statusIcon(status.Healthy)
	text := "Healthy"
	if !status.Healthy {
		text = "Issues Detected"
	}

	sb.WriteString(`<div class="status-page">`)
	sb.WriteString(fmt.Sprintf(`<div class="status-header">
<span class="%s status-icon">%s</span>
<span style="font-size: 18px;">%s</span>
</div>`, class, icon, text))

	// System Info
	sb.WriteString(`<div class="status-section">
<h3>System</h3>
<div class="system-info">`)
	for _, item := range [][2]string{
		{"Uptime", status.Uptime},
		{"Memory", fmt.Sprintf("%dMB / %dMB", status.Memory.Alloc, status.Memory.Sys)},
		{"Disk", fmt.Sprintf("%.1fGB / %.1fGB (%.0f%%)", status.Disk.UsedGB, status.Disk.TotalGB, status.Disk.Percent)},
		{"Sessions", fmt.Sprintf("%d", status.Sessions)},
	} {
		sb.WriteString(fmt.Sprintf(`<div class="system-info-item">
<div class="system-info-label">%s</div>
<div class="system-info-value">%s</div>
</div>`, item[0], item[1]))
	}
	sb.WriteString(`</div></div>`)

	// Services
	sb.WriteString(`<div class="status-section">
<h3>Services</h3>`)
	for _, svc := range status.Services {
		icon, class := statusIcon(svc.Status)
		details := ""
		if svc.Details != "" {
			details = fmt.Sprintf(`<span class="status-details">%s</span>`, html.EscapeString(svc.Details))
		}
		sb.WriteString(fmt.Sprintf(`<div class="status-item">
<span class="status-name">%s</span>
<span class="status-value">%s<span class="status-icon %s">%s</span></span>
</div>`, svc.Name, details, class, icon))
	}
	sb.WriteString(`</div>`)

	// Fetches
	sb.WriteString(`<div class="status-section" id="fetches">
<h3>Recent Fetches</h3>`)
	if len(status.Fetches.Recent) == 0 {
		sb.WriteString(Empty("No fetches yet"))
	}
	for _, f := range status.Fetches.Recent {
		icon, class := statusIcon(f.Error == "")
		details := fmt.Sprintf("%s, %d records, %s", f.Kind, f.Records, f.Duration.Round(time.Millisecond))
		if f.Error != "" {
			details = f.Kind + ": " + f.Error
		}
		sb.WriteString(fmt.Sprintf(`<div class="status-item">
<span class="status-name">%s</span>
<span class="status-value"><span class="status-details">%s</span><span class="status-icon %s">%s</span></span>
</div>`, html.EscapeString(f.Source), html.EscapeString(details), class, icon))
	}
	sb.WriteString(`</div>`)

	// API log
	sb.WriteString(`<div class="status-section" id="apilog">
<h3>API Calls</h3>`)
	if len(status.APILog) == 0 {
		sb.WriteString(Empty("No API calls yet"))
	}
	for _, e := range status.APILog {
		icon, class := statusIcon(e.Error == "")
		name := e.Transport
		if e.Kind != "" {
			name = e.Kind + " via " + e.Transport
		}
		sb.WriteString(fmt.Sprintf(`<div class="status-item">
<span class="status-name">%s %s</span>
<span class="status-value"><span class="status-details">%d, %d records, %s</span><span class="status-icon %s">%s</span></span>
</div>`, html.EscapeString(name), html.EscapeString(e.URL), e.Status, e.Records, e.Duration.Round(time.Millisecond), class, icon))
	}
	sb.WriteString(`</div>`)

	// System log
	sb.WriteString(`<div class="status-section" id="syslog">
<h3>Log</h3>`)
	for _, e := range status.SysLog {
		sb.WriteString(fmt.Sprintf(`<div class="status-item"><span class="status-name">%s [%s]</span><span class="status-details">%s</span></div>`,
			e.Time.Format("15:04:05"), html.EscapeString(e.Package), html.EscapeString(e.Message)))
	}
	sb.WriteString(`</div>`)

	sb.WriteString(`</div>`)
	return sb.String()
}
