// Package parser decodes EMOE scenario files: YAML into
// scenario.File, then each event line into its typed
// scenario.*Event, and finally the whole timeline into a sorted
// []eventseq.Event ready for a Sequencer. Grounded on
// original_source/emex/yamlscenariobuilder.py's per-eventtype parser
// dispatch table and regex-expansion-against-declared-platform-names
// behavior, kept in the teacher's own parser-package shape
// (variable substitution, CLI --set overrides) from
// pkg/scenario/parser/parser.go.
package parser

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adjacentlink/emexd/pkg/eventseq"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

// Parser parses EMOE scenario files.
type Parser struct {
	// Variables for ${VAR}/$VAR substitution before YAML decoding.
	Variables map[string]string
}

// New creates a new parser with optional variables.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// ParseFile parses a scenario from a YAML file.
func (p *Parser) ParseFile(path string) (*scenario.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return p.Parse(data)
}

// Parse parses a scenario from YAML bytes.
func (p *Parser) Parse(data []byte) (*scenario.File, error) {
	substituted := p.substituteVariables(string(data))

	var f scenario.File
	if err := yaml.Unmarshal([]byte(substituted), &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(f.Emoe.Platforms) == 0 {
		return nil, fmt.Errorf("emoe.platforms is required and must have at least one platform")
	}

	return &f, nil
}

func (p *Parser) substituteVariables(content string) string {
	re := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if val, ok := p.Variables[varName]; ok {
			return val
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// SetVariable sets a variable for substitution.
func (p *Parser) SetVariable(key, value string) { p.Variables[key] = value }

// ApplyOverrides applies CLI "--set platform.component.group.param=value"
// overrides onto the matching PlatformSpec in f, grounded on the
// teacher's own dotted-path --set handling.
func ApplyOverrides(f *scenario.File, overrides []string) error {
	for _, kv := range overrides {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format: %s (expected key=value)", kv)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		segs := strings.SplitN(key, ".", 2)
		if len(segs) != 2 {
			return fmt.Errorf("invalid override key %q: expected platform.component.group.param", key)
		}
		platformName, rest := segs[0], segs[1]

		var target *scenario.PlatformSpec
		for i := range f.Emoe.Platforms {
			if f.Emoe.Platforms[i].Name == platformName {
				target = &f.Emoe.Platforms[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("override references unknown platform %q", platformName)
		}
		if target.Overrides == nil {
			target.Overrides = make(map[string]string)
		}
		target.Overrides[rest] = value
	}
	return nil
}

// ParseEvents expands f's "events:" section into a time-sorted list
// of eventseq.Event, with each Payload one of scenario's typed event
// structs. Regex source/destination tokens are expanded against the
// platform names declared in f.Emoe.Platforms; a regex matching no
// platform is a fatal error, matching the original builder's
// behavior.
func ParseEvents(f *scenario.File) ([]eventseq.Event, error) {
	platformNames := make([]string, 0, len(f.Emoe.Platforms))
	for _, ps := range f.Emoe.Platforms {
		platformNames = append(platformNames, ps.Name)
	}

	times := make([]string, 0, len(f.Events))
	for t := range f.Events {
		times = append(times, t)
	}
	sort.Strings(times)

	var events []eventseq.Event
	for _, timeKey := range times {
		t, err := parseEventTime(timeKey)
		if err != nil {
			return nil, fmt.Errorf("event time %q: %w", timeKey, err)
		}

		for _, line := range strings.Split(f.Events[timeKey], "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			tokens := strings.Fields(line)
			payload, err := parseEventLine(tokens, platformNames)
			if err != nil {
				return nil, fmt.Errorf("event at %q: %w", timeKey, err)
			}
			events = append(events, eventseq.Event{Time: t, Payload: payload})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events, nil
}

func parseEventTime(key string) (float64, error) {
	if strings.EqualFold(key, "-inf") {
		return eventseq.NegativeInfinity, nil
	}
	return strconv.ParseFloat(key, 64)
}

func parseEventLine(tokens []string, platformNames []string) (interface{}, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty event line")
	}

	kind := tokens[0]
	rest := tokens[1:]

	switch kind {
	case "flow_on":
		return parseFlowOn(rest, platformNames)
	case "flow_off":
		return parseFlowOff(rest, platformNames)
	case "pov":
		return parsePov(rest)
	case "pathloss":
		return parsePathloss(rest)
	case "antenna_pointing":
		return parseAntennaPointing(rest)
	case "jam_on":
		return parseJamOn(rest)
	case "jam_off":
		return parseJamOff(rest)
	case "end":
		return scenario.EndEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// parsePlatformComponents splits a "PLATFORM[.COMPONENT]" token.
func parsePlatformComponents(tok string) scenario.PlatformComponentRef {
	parts := strings.SplitN(tok, ".", 2)
	ref := scenario.PlatformComponentRef{Platform: parts[0]}
	if len(parts) > 1 {
		ref.Components = []string{parts[1]}
	}
	return ref
}

func expandRegex(pattern string, platformNames []string, what string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid %s regex %q: %w", what, pattern, err)
	}
	var matches []string
	for _, name := range platformNames {
		if re.MatchString(name) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s %q does not match any platform name", what, pattern)
	}
	return matches, nil
}

func parseFlowOn(tokens []string, platformNames []string) (scenario.FlowOnEvent, error) {
	ev := scenario.FlowOnEvent{
		Sources:      []string{},
		Destinations: []string{},
		Protocol:     scenario.FlowUDP,
		Tos:          0,
		Ttl:          1,
	}
	sourceRegex, destRegex := ".*", ".*"

	i := 0
	for ; i < len(tokens); i++ {
		name, val, ok := splitKeyVal(tokens[i])
		if !ok {
			break
		}
		switch strings.ToLower(name) {
		case "name":
			ev.Name = val
		case "source":
			sourceRegex = val
		case "destination":
			destRegex = val
		case "proto":
			switch strings.ToLower(val) {
			case "udp":
				ev.Protocol = scenario.FlowUDP
			case "tcp":
				ev.Protocol = scenario.FlowTCP
			case "multicast":
				ev.Protocol = scenario.FlowMulticast
			default:
				return ev, fmt.Errorf("unknown flow_on protocol %q", val)
			}
		case "tos":
			n, err := strconv.Atoi(val)
			if err != nil {
				return ev, fmt.Errorf("invalid flow_on tos %q: %w", val, err)
			}
			ev.Tos = n
		case "ttl":
			n, err := strconv.Atoi(val)
			if err != nil {
				return ev, fmt.Errorf("invalid flow_on ttl %q: %w", val, err)
			}
			ev.Ttl = n
		default:
			return ev, fmt.Errorf("unknown flow_on specifier %q", name)
		}
	}

	remaining := tokens[i:]
	if len(remaining) < 3 {
		return ev, fmt.Errorf("flow_on missing flow type/rate/size fields")
	}

	switch remaining[0] {
	case "periodic":
		ev.Type = scenario.FlowPeriodic
	case "poisson":
		ev.Type = scenario.FlowPoisson
	case "jitter":
		ev.Type = scenario.FlowJitter
	default:
		return ev, fmt.Errorf("unknown flow_on flow type %q", remaining[0])
	}

	rate, err := strconv.ParseFloat(remaining[1], 64)
	if err != nil {
		return ev, fmt.Errorf("invalid flow_on packet rate %q: %w", remaining[1], err)
	}
	ev.PacketRate = rate

	size, err := strconv.Atoi(remaining[2])
	if err != nil {
		return ev, fmt.Errorf("invalid flow_on size %q: %w", remaining[2], err)
	}
	ev.SizeBytes = size

	if len(remaining) > 3 {
		jitter, err := strconv.ParseFloat(remaining[3], 64)
		if err != nil {
			return ev, fmt.Errorf("invalid flow_on jitter fraction %q: %w", remaining[3], err)
		}
		ev.JitterFraction = jitter
	}

	sources, err := expandRegex(sourceRegex, platformNames, "flow source")
	if err != nil {
		return ev, err
	}
	ev.Sources = sources

	destinations, err := expandRegex(destRegex, platformNames, "flow destination")
	if err != nil {
		return ev, err
	}
	ev.Destinations = destinations

	return ev, nil
}

func parseFlowOff(tokens []string, platformNames []string) (scenario.FlowOffEvent, error) {
	ev := scenario.FlowOffEvent{}
	sourceRegex, destRegex := ".*", ".*"

	for _, tok := range tokens {
		name, val, ok := splitKeyVal(tok)
		if !ok {
			return ev, fmt.Errorf("unexpected flow_off token %q", tok)
		}
		switch strings.ToLower(name) {
		case "name":
			ev.Name = val
		case "flow_id":
			ev.FlowIDs = append(ev.FlowIDs, val)
		case "source":
			sourceRegex = val
		case "destination":
			destRegex = val
		default:
			return ev, fmt.Errorf("unknown flow_off specifier %q", name)
		}
	}

	sources, err := expandRegex(sourceRegex, platformNames, "flow source")
	if err != nil {
		return ev, err
	}
	ev.Sources = sources

	destinations, err := expandRegex(destRegex, platformNames, "flow destination")
	if err != nil {
		return ev, err
	}
	ev.Destinations = destinations

	return ev, nil
}

func splitKeyVal(tok string) (key, val string, ok bool) {
	parts := strings.SplitN(tok, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func parsePov(tokens []string) (scenario.PovEvent, error) {
	var ev scenario.PovEvent
	if len(tokens) < 4 {
		return ev, fmt.Errorf("pov event has too few fields")
	}
	if len(tokens) > 10 {
		return ev, fmt.Errorf("pov event has too many fields")
	}

	ev.Ref = parsePlatformComponents(tokens[0])

	fields := []*float64{&ev.Lat, &ev.Lon, &ev.Alt, &ev.Azimuth, &ev.Elevation, &ev.Speed, &ev.Pitch, &ev.Roll, &ev.Yaw}
	vals := tokens[1:]
	for i, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ev, fmt.Errorf("pov field %d (%q) is not a number: %w", i, v, err)
		}
		*fields[i] = f
	}

	return ev, nil
}

func parsePathloss(tokens []string) (scenario.PathlossEvent, error) {
	var ev scenario.PathlossEvent
	if len(tokens) < 1 {
		return ev, fmt.Errorf("pathloss event requires a platform reference")
	}
	ev.Ref = parsePlatformComponents(tokens[0])

	for _, tok := range tokens[1:] {
		remotePlt, dbStr, ok := splitOnColon(tok)
		if !ok {
			return ev, fmt.Errorf("pathloss entry %q must be PLATFORM[.COMPONENT]:DB", tok)
		}
		db, err := strconv.ParseFloat(dbStr, 64)
		if err != nil {
			return ev, fmt.Errorf("pathloss entry %q has invalid db value: %w", tok, err)
		}
		ev.Links = append(ev.Links, scenario.PathlossLink{
			Remote: parsePlatformComponents(remotePlt),
			DB:     db,
		})
	}

	return ev, nil
}

func splitOnColon(tok string) (before, after string, ok bool) {
	idx := strings.LastIndex(tok, ":")
	if idx < 0 {
		return "", "", false
	}
	return tok[:idx], tok[idx+1:], true
}

func parseAntennaPointing(tokens []string) (scenario.AntennaPointingEvent, error) {
	var ev scenario.AntennaPointingEvent
	if len(tokens) != 3 {
		return ev, fmt.Errorf("antenna_pointing event has the wrong number of fields")
	}
	ev.Ref = parsePlatformComponents(tokens[0])

	az, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return ev, fmt.Errorf("antenna_pointing azimuth %q is not a number: %w", tokens[1], err)
	}
	el, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return ev, fmt.Errorf("antenna_pointing elevation %q is not a number: %w", tokens[2], err)
	}
	ev.Azimuth, ev.Elevation = az, el
	return ev, nil
}

func parseJamOn(tokens []string) (scenario.JamOnEvent, error) {
	var ev scenario.JamOnEvent
	if len(tokens) != 6 {
		return ev, fmt.Errorf("jam_on event has the wrong number of fields")
	}
	ev.Ref = parsePlatformComponents(tokens[0])

	txpower, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return ev, fmt.Errorf("jam_on txpower %q is not a number: %w", tokens[1], err)
	}
	ev.TxPower = txpower

	ints := []*int{&ev.Bandwidth, &ev.Period, &ev.DutyCycle}
	for i, v := range tokens[2:5] {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ev, fmt.Errorf("jam_on field %d (%q) is not an integer: %w", i+2, v, err)
		}
		*ints[i] = n
	}

	for _, f := range strings.Split(tokens[5], ",") {
		n, err := strconv.Atoi(f)
		if err != nil {
			return ev, fmt.Errorf("jam_on frequency %q is not an integer: %w", f, err)
		}
		ev.Frequencies = append(ev.Frequencies, n)
	}

	return ev, nil
}

func parseJamOff(tokens []string) (scenario.JamOffEvent, error) {
	var ev scenario.JamOffEvent
	if len(tokens) != 1 {
		return ev, fmt.Errorf("jam_off event has the wrong number of fields")
	}
	ev.Ref = parsePlatformComponents(tokens[0])
	return ev, nil
}

// AssertFinite is used by tests/driver code asserting no NaN/Inf
// leaked into a numeric field besides the designated -Inf event time.
func AssertFinite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
