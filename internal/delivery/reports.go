package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"insightd/internal/collector"
	"insightd/internal/config"
	"insightd/internal/model"
	"insightd/pkg/metrics"
)

// reportTolerance is how far past (or before) the target time a tick may
// land and still fire the report.
const reportTolerance = 2 * time.Minute

// MarkerStore tracks which (report, period) pairs already went out.
type MarkerStore interface {
	Exists(ctx context.Context, reportName, periodKey string) (bool, error)
	Mark(ctx context.Context, reportName, periodKey string, at time.Time) error
}

// BatchSource supplies the insights batched for the next digest.
type BatchSource interface {
	ListUndelivered(ctx context.Context, since time.Time) ([]model.Insight, error)
	MarkDelivered(ctx context.Context, ids []string) error
}

// ReportDef is one scheduled report.
type ReportDef struct {
	Name     string
	Enabled  bool
	Hour     int
	Minute   int
	Day      *time.Weekday // weekly reports only
	Lookback time.Duration // how far back batched insights are pulled
}

// BuildReportDefs converts validated config into report definitions.
func BuildReportDefs(cfg *config.Config) ([]ReportDef, error) {
	build := func(name string, rc config.ReportConfig, day *time.Weekday, lookback time.Duration) (ReportDef, error) {
		hour, minute, err := config.ParseClock(rc.Time)
		if err != nil {
			return ReportDef{}, fmt.Errorf("report %s: %w", name, err)
		}
		return ReportDef{
			Name:     name,
			Enabled:  rc.IsEnabled(),
			Hour:     hour,
			Minute:   minute,
			Day:      day,
			Lookback: lookback,
		}, nil
	}

	morning, err := build("morning", cfg.Delivery.Morning, nil, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	evening, err := build("evening", cfg.Delivery.Evening, nil, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	day, err := config.ParseWeekday(cfg.Delivery.Weekly.Day)
	if err != nil {
		return nil, fmt.Errorf("report weekly: %w", err)
	}
	weekly, err := build("weekly", cfg.Delivery.Weekly, &day, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return []ReportDef{morning, evening, weekly}, nil
}

// PeriodKey identifies the period a send belongs to: the local date for
// daily reports, the ISO year-week for weekly ones.
func PeriodKey(def ReportDef, now time.Time) string {
	if def.Day != nil {
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return now.Format("2006-01-02")
}

// Due reports whether the report should fire at this instant, ignoring
// the send marker (the caller checks that separately).
func Due(def ReportDef, now time.Time) bool {
	if !def.Enabled {
		return false
	}
	if def.Day != nil && now.Weekday() != *def.Day {
		return false
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	targetMinutes := def.Hour*60 + def.Minute
	diff := nowMinutes - targetMinutes
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Minute <= reportTolerance
}

// Reporter generates and sends scheduled reports exactly once per
// period. The send marker is the sole duplicate-send guard across
// overlapping ticks and restarts.
type Reporter struct {
	defs             []ReportDef
	collectors       *collector.Registry
	insights         BatchSource
	markers          MarkerStore
	channel          Channel
	loc              *time.Location
	collectorTimeout time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

func NewReporter(
	defs []ReportDef,
	collectors *collector.Registry,
	insights BatchSource,
	markers MarkerStore,
	channel Channel,
	loc *time.Location,
	collectorTimeout time.Duration,
	logger *zap.Logger,
) *Reporter {
	if collectorTimeout <= 0 {
		collectorTimeout = 30 * time.Second
	}
	return &Reporter{
		defs:             defs,
		collectors:       collectors,
		insights:         insights,
		markers:          markers,
		channel:          channel,
		loc:              loc,
		collectorTimeout: collectorTimeout,
		logger:           logger,
		now:              time.Now,
	}
}

// CheckDue runs the due-check for every report and sends the ones whose
// period has not been marked yet. Returns how many reports were sent.
func (r *Reporter) CheckDue(ctx context.Context) int {
	now := r.now().In(r.loc)
	sent := 0

	for _, def := range r.defs {
		if !Due(def, now) {
			continue
		}

		key := PeriodKey(def, now)
		exists, err := r.markers.Exists(ctx, def.Name, key)
		if err != nil {
			r.logger.Error("Failed to check report marker",
				zap.String("report", def.Name),
				zap.Error(err),
			)
			continue
		}
		if exists {
			continue
		}

		if err := r.sendReport(ctx, def, key, now); err != nil {
			r.logger.Error("Failed to send scheduled report",
				zap.String("report", def.Name),
				zap.String("period_key", key),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (r *Reporter) sendReport(ctx context.Context, def ReportDef, key string, now time.Time) error {
	body, includedIDs := r.Generate(ctx, def, now)

	if err := r.channel.Send(ctx, body); err != nil {
		return fmt.Errorf("channel send: %w", err)
	}

	// Mark first-wins: a uniqueness conflict means a concurrent tick got
	// there first, which the repository swallows.
	if err := r.markers.Mark(ctx, def.Name, key, now); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	if len(includedIDs) > 0 {
		if err := r.insights.MarkDelivered(ctx, includedIDs); err != nil {
			r.logger.Error("Failed to mark batched insights delivered", zap.Error(err))
		}
	}

	metrics.ReportsSent.WithLabelValues(def.Name).Inc()
	r.logger.Info("Scheduled report sent",
		zap.String("report", def.Name),
		zap.String("period_key", key),
		zap.Int("batched_insights", len(includedIDs)),
	)
	return nil
}

// Generate renders the report body and returns the IDs of the batched
// insights it includes.
func (r *Reporter) Generate(ctx context.Context, def ReportDef, now time.Time) (string, []string) {
	var sections []string

	sections = append(sections, r.header(def, now))

	highlights, ids := r.highlightsSection(ctx, def, now)
	if highlights != "" {
		sections = append(sections, highlights)
	}

	for _, c := range r.collectors.All() {
		section := r.liveSection(ctx, c)
		if section != "" {
			sections = append(sections, section)
		}
	}

	return strings.Join(sections, "\n\n"), ids
}

func (r *Reporter) header(def ReportDef, now time.Time) string {
	switch def.Name {
	case "morning":
		return fmt.Sprintf("Good morning! Here's your briefing for %s", now.Format("Monday, Jan 2"))
	case "evening":
		return fmt.Sprintf("Good evening! Here's your day summary for %s", now.Format("Monday, Jan 2"))
	case "weekly":
		start := now.AddDate(0, 0, -7)
		return fmt.Sprintf("Weekly Summary (%s - %s)", start.Format("Jan 2"), now.Format("Jan 2"))
	default:
		return fmt.Sprintf("%s report for %s", def.Name, now.Format("Monday, Jan 2"))
	}
}

// highlightsSection lists batched, unexpired insights from the report
// window, highest priority first.
func (r *Reporter) highlightsSection(ctx context.Context, def ReportDef, now time.Time) (string, []string) {
	batched, err := r.insights.ListUndelivered(ctx, now.Add(-def.Lookback))
	if err != nil {
		r.logger.Error("Failed to load batched insights", zap.Error(err))
		return "", nil
	}

	var fresh []model.Insight
	for _, i := range batched {
		if !i.IsExpired(now) {
			fresh = append(fresh, i)
		}
	}
	if len(fresh) == 0 {
		return "", nil
	}

	sort.SliceStable(fresh, func(a, b int) bool {
		return fresh[a].Priority > fresh[b].Priority
	})

	lines := []string{"Highlights"}
	ids := make([]string, 0, len(fresh))
	for _, i := range fresh {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", i.Priority.String(), i.Title, i.Message))
		ids = append(ids, i.ID)
	}
	return strings.Join(lines, "\n"), ids
}

// liveSection pulls fresh data from one collector and renders the few
// fields each known domain cares about. Unknown domains get a compact
// key count so a new collector still shows up.
func (r *Reporter) liveSection(ctx context.Context, c collector.Collector) string {
	cctx, cancel := context.WithTimeout(ctx, r.collectorTimeout)
	defer cancel()

	data, err := c.Collect(cctx)
	if err != nil {
		r.logger.Warn("Report collector failed",
			zap.String("collector", c.Name()),
			zap.Error(err),
		)
		return ""
	}
	if len(data) == 0 {
		return ""
	}

	switch c.Name() {
	case "weather":
		return renderWeather(data)
	case "calendar":
		return renderCalendar(data)
	case "health":
		return renderHealth(data)
	case "system":
		return renderSystem(data)
	default:
		return fmt.Sprintf("%s: %d fields reported", c.Name(), len(data))
	}
}

func renderWeather(data map[string]any) string {
	current, _ := data["current"].(map[string]any)
	if current == nil {
		return ""
	}
	lines := []string{"Weather"}
	if temp, ok := numField(current, "temp"); ok {
		desc, _ := current["description"].(string)
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("Currently %.0f°C, %s", temp, desc)))
	}
	if today, ok := data["today"].(map[string]any); ok {
		high, okH := numField(today, "high")
		low, okL := numField(today, "low")
		if okH && okL {
			lines = append(lines, fmt.Sprintf("High %.0f°C, Low %.0f°C", high, low))
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func renderCalendar(data map[string]any) string {
	today, _ := data["today"].(map[string]any)
	if today == nil {
		return ""
	}
	count, ok := numField(today, "meeting_count")
	if !ok {
		return ""
	}
	if count == 0 {
		return "Calendar\nNo meetings today"
	}
	if hours, ok := numField(today, "meeting_hours"); ok {
		return fmt.Sprintf("Calendar\n%.0f meetings today (%.1fh total)", count, hours)
	}
	return fmt.Sprintf("Calendar\n%.0f meetings today", count)
}

func renderHealth(data map[string]any) string {
	lines := []string{"Health"}
	if sleep, ok := data["sleep"].(map[string]any); ok {
		if score, ok := numField(sleep, "sleep_score"); ok {
			if dur, ok := numField(sleep, "duration_hours"); ok {
				lines = append(lines, fmt.Sprintf("Sleep: %.0f (%.1fh)", score, dur))
			} else {
				lines = append(lines, fmt.Sprintf("Sleep score: %.0f", score))
			}
		}
	}
	if bb, ok := data["body_battery"].(map[string]any); ok {
		if current, ok := numField(bb, "current"); ok {
			lines = append(lines, fmt.Sprintf("Body battery: %.0f%%", current))
		}
	}
	if stress, ok := data["stress"].(map[string]any); ok {
		if current, ok := numField(stress, "current"); ok && current > 0 {
			lines = append(lines, fmt.Sprintf("Stress: %.0f", current))
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func renderSystem(data map[string]any) string {
	var parts []string
	if services, ok := data["services"].(map[string]any); ok {
		up, okUp := numField(services, "up")
		total, okTotal := numField(services, "total")
		if okUp && okTotal {
			if up < total {
				parts = append(parts, fmt.Sprintf("%.0f/%.0f services up", up, total))
			} else {
				parts = append(parts, fmt.Sprintf("All %.0f services running", total))
			}
		}
	}
	if disk, ok := numField(data, "disk_percent"); ok {
		parts = append(parts, fmt.Sprintf("disk %.0f%%", disk))
	}
	if mem, ok := numField(data, "memory_percent"); ok {
		parts = append(parts, fmt.Sprintf("memory %.0f%%", mem))
	}
	if len(parts) == 0 {
		return ""
	}
	return "System\n" + strings.Join(parts, ", ")
}

func numField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
