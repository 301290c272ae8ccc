package breadcrumb

import (
	"fmt"
	"strings"

	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// Categories produced by DefaultConverter.
const (
	CategoryNavigation   = "navigation"
	CategoryTap          = "ui.tap"
	CategoryConnectivity = "device.connectivity"
	CategoryOrientation  = "device.orientation"
	CategoryBattery      = "device.battery"
)

// DefaultConverter maps app breadcrumbs to replay breadcrumb events. Network
// request crumbs and the recorder's own internal crumbs are skipped.
type DefaultConverter struct{}

// Convert reports false when b has no place on the replay timeline.
func (DefaultConverter) Convert(b Breadcrumb) (rrweb.Event, bool) {
	ev := &rrweb.BreadcrumbEvent{
		Timestamp: b.Timestamp,
		Kind:      "default",
		Category:  b.Category,
		Message:   b.Message,
		Level:     b.Level,
	}

	switch {
	case b.Category == "http" || strings.HasPrefix(b.Category, "sentry."):
		return nil, false

	case b.Type == "navigation" && b.Category == "app.lifecycle":
		state, _ := b.Data["state"].(string)
		if state == "" {
			return nil, false
		}
		ev.Category = "app." + state
		ev.Message = ""
		ev.Level = ""

	case b.Type == "navigation" && b.Category == CategoryOrientation:
		pos, _ := b.Data["position"].(string)
		if pos != "landscape" && pos != "portrait" {
			return nil, false
		}
		ev.Category = CategoryOrientation
		ev.Data = map[string]any{"position": pos}

	case b.Type == "navigation":
		to, ok := navigationTarget(b)
		if !ok {
			return nil, false
		}
		ev.Category = CategoryNavigation
		ev.Message = ""
		ev.Data = map[string]any{"to": to}

	case b.Category == "ui.click":
		target := firstString(b.Data, "view.id", "view.tag", "view.class")
		if target == "" {
			return nil, false
		}
		ev.Category = CategoryTap
		ev.Message = target
		ev.Data = copyData(b.Data)

	case b.Type == "system" && b.Category == "network.event":
		ev.Category = CategoryConnectivity
		state := "offline"
		if action, _ := b.Data["action"].(string); action != "NETWORK_LOST" {
			state, _ = b.Data["network_type"].(string)
			if state == "" {
				return nil, false
			}
		}
		ev.Data = map[string]any{"state": state}

	case b.Data["action"] == "BATTERY_CHANGED":
		ev.Category = CategoryBattery
		data := map[string]any{}
		for _, k := range []string{"level", "charging"} {
			if v, ok := b.Data[k]; ok {
				data[k] = v
			}
		}
		ev.Data = data

	default:
		ev.Data = copyData(b.Data)
	}
	return ev, true
}

// NavigationURL returns the destination of a converted navigation event.
func NavigationURL(ev rrweb.Event) (string, bool) {
	bc, ok := ev.(*rrweb.BreadcrumbEvent)
	if !ok || bc.Category != CategoryNavigation {
		return "", false
	}
	to, ok := bc.Data["to"].(string)
	return to, ok && to != ""
}

func navigationTarget(b Breadcrumb) (string, bool) {
	if state, _ := b.Data["state"].(string); state == "resumed" {
		screen, _ := b.Data["screen"].(string)
		if screen == "" {
			return "", false
		}
		// activity names are reported fully qualified
		if i := strings.LastIndexByte(screen, '.'); i >= 0 {
			screen = screen[i+1:]
		}
		return screen, true
	}
	to, ok := b.Data["to"].(string)
	return to, ok && to != ""
}

func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func copyData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
