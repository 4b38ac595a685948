package agent

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

// EmulatorEventSink publishes POV, pathloss, and antenna-pointing
// events to the inner emulator's event channel. It is the spec's
// opaque inner-emulator collaborator; defaultEventSink below
// publishes over a local UDP multicast socket (the transport the
// original's emaneeventmanager.py uses for EMANE events) addressed by
// NEM id, so the interface is exercised end-to-end.
type EmulatorEventSink interface {
	PublishPOV(ev scenario.PovEvent) error
	PublishPathloss(ev scenario.PathlossEvent) error
	PublishAntennaPointing(ev scenario.AntennaPointingEvent) error
}

// NemProfileMaps resolves a "platform[.component]" reference to the
// NEM id and antenna profile id the config tree builder assigned it,
// loaded at boot from the doc/ csv-style maps
// (pkg/configtree.writeNemIDProfileIDMap's output).
type NemProfileMaps struct {
	NemIDs     map[string]int // "platform.component" -> nemid
	ProfileIDs map[string]int // "platform.component" -> profileid
}

// LoadNemProfileMaps parses the nemidprofileidmap doc artifact
// ("platform.component nemid profileid" lines, sorted by nemid — see
// pkg/configtree.writeNemIDProfileIDMap).
func LoadNemProfileMaps(path string) (*NemProfileMaps, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening nemidprofileidmap: %w", err)
	}
	defer f.Close()

	m := &NemProfileMaps{NemIDs: make(map[string]int), ProfileIDs: make(map[string]int)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		nemid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		profileid, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		m.NemIDs[fields[0]] = nemid
		m.ProfileIDs[fields[0]] = profileid
	}
	return m, scanner.Err()
}

func (m *NemProfileMaps) nemID(ref scenario.PlatformComponentRef) (int, bool) {
	key := ref.Platform
	if len(ref.Components) > 0 {
		key = ref.Platform + "." + ref.Components[0]
	}
	id, ok := m.NemIDs[key]
	return id, ok
}

// defaultEventSink publishes events as newline-terminated text
// datagrams to a local UDP multicast group, the same addressing the
// inner emulator's own event channel uses (emaneeventmanager.py's
// EventService multicast group/port).
type defaultEventSink struct {
	conn  *net.UDPConn
	maps  *NemProfileMaps
}

// NewDefaultEventSink dials group:port (the inner emulator's event
// multicast address) and returns a sink addressing events by the NEM
// ids in maps.
func NewDefaultEventSink(group string, port int, maps *NemProfileMaps) (EmulatorEventSink, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", group, port))
	if err != nil {
		return nil, fmt.Errorf("resolving emulator event multicast address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing emulator event multicast socket: %w", err)
	}
	return &defaultEventSink{conn: conn, maps: maps}, nil
}

func (s *defaultEventSink) publish(line string) error {
	_, err := s.conn.Write([]byte(line + "\n"))
	if err != nil {
		log.Warn().Err(err).Str("line", line).Msg("publishing emulator event")
	}
	return err
}

func (s *defaultEventSink) PublishPOV(ev scenario.PovEvent) error {
	nemID, ok := s.maps.nemID(ev.Ref)
	if !ok {
		return fmt.Errorf("pov event: no nem id for %s", ev.Ref.Platform)
	}
	return s.publish(fmt.Sprintf("POV %d %.6f %.6f %.2f %.2f %.2f %.2f %.2f %.2f %.2f",
		nemID, ev.Lat, ev.Lon, ev.Alt, ev.Azimuth, ev.Elevation, ev.Speed, ev.Pitch, ev.Roll, ev.Yaw))
}

// PublishPathloss applies ev symmetrically — the forward and reverse
// link are both published at the same decibel value, per spec.
func (s *defaultEventSink) PublishPathloss(ev scenario.PathlossEvent) error {
	localID, ok := s.maps.nemID(ev.Ref)
	if !ok {
		return fmt.Errorf("pathloss event: no nem id for %s", ev.Ref.Platform)
	}
	for _, link := range ev.Links {
		remoteID, ok := s.maps.nemID(link.Remote)
		if !ok {
			return fmt.Errorf("pathloss event: no nem id for %s", link.Remote.Platform)
		}
		if err := s.publish(fmt.Sprintf("PATHLOSS %d %d %.2f", localID, remoteID, link.DB)); err != nil {
			return err
		}
		if err := s.publish(fmt.Sprintf("PATHLOSS %d %d %.2f", remoteID, localID, link.DB)); err != nil {
			return err
		}
	}
	return nil
}

func (s *defaultEventSink) PublishAntennaPointing(ev scenario.AntennaPointingEvent) error {
	nemID, ok := s.maps.nemID(ev.Ref)
	if !ok {
		return fmt.Errorf("antenna_pointing event: no nem id for %s", ev.Ref.Platform)
	}
	key := ev.Ref.Platform
	if len(ev.Ref.Components) > 0 {
		key = ev.Ref.Platform + "." + ev.Ref.Components[0]
	}
	profileID := s.maps.ProfileIDs[key]
	return s.publish(fmt.Sprintf("ANTENNAPOINTING %d %d %.2f %.2f", nemID, profileID, ev.Azimuth, ev.Elevation))
}
