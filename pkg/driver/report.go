package driver

import (
	"fmt"
	"time"

	"github.com/adjacentlink/emexd/pkg/reporting"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

// platformInfos builds a RunReport's platform listing from a
// scenario's declarative emoe section.
func platformInfos(emoeID string, spec scenario.EmoeSpec) []reporting.PlatformInfo {
	platforms := make([]reporting.PlatformInfo, 0, len(spec.Platforms))
	for _, p := range spec.Platforms {
		platforms = append(platforms, reporting.PlatformInfo{
			Name:     p.Name,
			Template: p.Template,
			EmoeID:   emoeID,
		})
	}
	return platforms
}

// eventTarget best-effort extracts a representative platform name
// from a parsed scenario event payload, for RunReport.EventInfo.Target.
func eventTarget(payload interface{}) string {
	switch e := payload.(type) {
	case scenario.FlowOnEvent:
		if len(e.Sources) > 0 {
			return e.Sources[0]
		}
	case scenario.FlowOffEvent:
		if len(e.Sources) > 0 {
			return e.Sources[0]
		}
	case scenario.PovEvent:
		return e.Ref.Platform
	case scenario.PathlossEvent:
		return e.Ref.Platform
	case scenario.AntennaPointingEvent:
		return e.Ref.Platform
	case scenario.JamOnEvent:
		return e.Ref.Platform
	case scenario.JamOffEvent:
		return e.Ref.Platform
	}
	return ""
}

// newEventInfo records one sent scenario event for a RunReport.
func newEventInfo(timepoint float64, kind string, payload interface{}, ok bool, message string) reporting.EventInfo {
	return reporting.EventInfo{
		Kind:      kind,
		Target:    eventTarget(payload),
		Timepoint: fmt.Sprintf("%g", timepoint),
		SentAt:    time.Now(),
		OK:        ok,
		Message:   message,
	}
}
