package configtree

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// testDoc mirrors the original's lxml test.xml: emoe name and a
// description body listing every platform.
type testDoc struct {
	XMLName     xml.Name `xml:"test"`
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
}

func writeTestFile(rt *runtime.EmoeRuntime, configDir string) error {
	var lines []string
	for _, plt := range rt.Emoe.Platforms() {
		lines = append(lines, "\t"+plt.Name)
	}
	doc := testDoc{Name: rt.Emoe.Name(), Description: strings.Join(lines, "\n") + "\n"}
	return writeXML(filepath.Join(configDir, "test.xml"), doc)
}

// antennaProfileXML is one built <profile> entry in the antenna
// manifest, identified by the antenna name plus its fixed orientation
// — distinct components assigned the identical (antenna, orientation)
// collapse to one profile entry, matching model.AntennaProfile's
// equality.
type antennaProfileXML struct {
	XMLName  xml.Name `xml:"profile"`
	ID       int      `xml:"id,attr"`
	Antenna  string   `xml:"antenna"`
	Gain     float64  `xml:"gain"`
	Beamwidth float64 `xml:"horizontalbeamwidth"`
	North    float64  `xml:"north"`
	East     float64  `xml:"east"`
	Up       float64  `xml:"up"`
}

type profilesXML struct {
	XMLName  xml.Name             `xml:"profiles"`
	Profiles []antennaProfileXML `xml:"profile"`
}

// writeAntennaFiles builds the dedup'd antenna profile manifest and
// returns the assigned profile id for every (platform, component)
// still needing one, used downstream by the nemid/profileid map.
func writeAntennaFiles(rt *runtime.EmoeRuntime, configDir string) (map[[2]string]int, error) {
	assignments := rt.Emoe.AntennaAssignments()

	ids := make(map[model.AntennaProfile]int)
	var doc profilesXML
	out := make(map[[2]string]int)

	// stable order: iterate assignments sorted by (platform,component)
	keys := make([][2]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	sortPairs(keys)

	nextID := 0
	for _, k := range keys {
		profile := assignments[k]
		id, ok := ids[profile]
		if !ok {
			antenna, known := rt.Emoe.AntennaByName(profile.AntennaName)
			if !known {
				return nil, fmt.Errorf("antenna profile references unknown antenna %q", profile.AntennaName)
			}
			id = nextID
			nextID++
			ids[profile] = id
			doc.Profiles = append(doc.Profiles, antennaProfileXML{
				ID:        id,
				Antenna:   antenna.Name,
				Gain:      antenna.Type.MaxGain,
				Beamwidth: antenna.Type.MaxHorizontalBeamwidth,
				North:     profile.North,
				East:      profile.East,
				Up:        profile.Up,
			})
		}
		out[k] = id
	}

	if err := writeXML(filepath.Join(configDir, "antennaprofiles.xml"), doc); err != nil {
		return nil, err
	}
	return out, nil
}

func sortPairs(keys [][2]string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0; j-- {
			a, b := keys[j-1], keys[j]
			if a[0] > b[0] || (a[0] == b[0] && a[1] > b[1]) {
				keys[j-1], keys[j] = keys[j], keys[j-1]
			} else {
				break
			}
		}
	}
}

func writeXML(path string, v interface{}) error {
	raw, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	raw = append([]byte(xml.Header), raw...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
