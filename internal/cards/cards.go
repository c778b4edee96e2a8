// Package cards renders the structured payloads the assistant attaches
// to a reply (weather, tasks, daily summary, ...) as terminal cards.
package cards

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Payload is the handler_response object of an assistant reply.
type Payload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Render formats a payload for the terminal. Unknown card types fall
// back to the plain message line.
func Render(p *Payload) string {
	if p == nil {
		return ""
	}

	switch p.Type {
	case "weather":
		return renderWeather(p)
	case "task":
		return renderTask(p)
	case "summary":
		return renderSummary(p)
	case "calendar_delete":
		return renderCalendarDelete(p)
	case "educational":
		return renderEducational(p)
	default:
		return p.Message
	}
}

func renderWeather(p *Payload) string {
	lines := []string{titleStyle.Render("Weather")}

	if loc := str(p.Data, "location"); loc != "" {
		lines = append(lines, loc)
	}

	temp := num(p.Data, "temperature")
	if temp != "" {
		unit := "°"
		switch str(p.Data, "unit") {
		case "fahrenheit":
			unit = "°F"
		case "celsius":
			unit = "°C"
		}
		cond := str(p.Data, "condition")
		lines = append(lines, strings.TrimSpace(temp+unit+"  "+cond))
	}

	if h := num(p.Data, "humidity"); h != "" {
		lines = append(lines, labelStyle.Render("humidity ")+h+"%")
	}
	if w := num(p.Data, "wind_speed"); w != "" {
		lines = append(lines, labelStyle.Render("wind     ")+w)
	}

	return card(lines, p.Message)
}

func renderTask(p *Payload) string {
	lines := []string{titleStyle.Render("Task")}

	if text := str(p.Data, "task_text"); text != "" {
		lines = append(lines, text)
	}
	if status := str(p.Data, "status"); status != "" {
		lines = append(lines, labelStyle.Render("status ")+status)
	}
	if at := str(p.Data, "created_at"); at != "" {
		lines = append(lines, dimStyle.Render(at))
	}

	return card(lines, p.Message)
}

func renderSummary(p *Payload) string {
	lines := []string{titleStyle.Render("Daily summary")}

	if date := str(p.Data, "date"); date != "" {
		lines = append(lines, dimStyle.Render(date))
	}
	if n := num(p.Data, "event_count"); n != "" {
		lines = append(lines, labelStyle.Render("events ")+n)
	}
	if done := num(p.Data, "tasks_completed"); done != "" {
		pending := num(p.Data, "tasks_pending")
		lines = append(lines, labelStyle.Render("tasks  ")+done+" done, "+pending+" pending")
	}
	for _, h := range list(p.Data, "highlights") {
		lines = append(lines, "• "+h)
	}

	return card(lines, p.Message)
}

func renderCalendarDelete(p *Payload) string {
	lines := []string{titleStyle.Render("Calendar")}

	if ev := str(p.Data, "deleted_event"); ev != "" {
		lines = append(lines, "deleted: "+ev)
	}
	if avail := list(p.Data, "available_events"); len(avail) > 0 {
		lines = append(lines, labelStyle.Render("today: ")+strings.Join(avail, ", "))
	}

	return card(lines, p.Message)
}

func renderEducational(p *Payload) string {
	lines := []string{titleStyle.Render(strOr(p.Data, "topic", "Learn"))}

	if s := str(p.Data, "summary"); s != "" {
		lines = append(lines, s)
	}
	for _, k := range list(p.Data, "key_points") {
		lines = append(lines, "• "+k)
	}

	return card(lines, p.Message)
}

func card(lines []string, message string) string {
	if message != "" {
		lines = append(lines, "", message)
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// --- data helpers: the backend sends loosely typed JSON objects ---

func str(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func strOr(data map[string]any, key, fallback string) string {
	if s := str(data, key); s != "" {
		return s
	}
	return fallback
}

func num(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.1f", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

func list(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			out = append(out, summarizeObject(v))
		}
	}
	return out
}

// summarizeObject flattens a nested object (a calendar event, usually)
// into a single line.
func summarizeObject(obj map[string]any) string {
	if s, ok := obj["summary"].(string); ok && s != "" {
		return s
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, obj[k]))
	}
	return strings.Join(parts, " ")
}
