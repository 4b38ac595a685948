// Package scenario defines the EMOE scenario file format: a
// declarative emoe section (which platforms/antennas/initial
// conditions to submit) plus a timepoint -> event-lines mapping,
// adapted from the teacher's pkg/scenario package split (types.go +
// parser/ + validator/) but re-purposed for the EMOE event grammar
// instead of the teacher's chaos-fault grammar. Grounded on
// original_source/emex/yamlscenariobuilder.py.
package scenario

// PlatformSpec names a platform template to instantiate plus any
// param overrides on top of its defaults, keyed "component.group.param".
type PlatformSpec struct {
	Name      string            `yaml:"name" json:"name"`
	Template  string            `yaml:"template" json:"template"`
	Overrides map[string]string `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// AntennaSpec names an antenna instance and the antenna type template
// it's built from.
type AntennaSpec struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// InitialConditionSpec mirrors emoe.InitialCondition's wire shape —
// one of the "pov" or "antenna_pointing" kinds, applied before the
// scenario's first real event.
type InitialConditionSpec struct {
	Platform    string  `yaml:"platform" json:"platform"`
	Kind        string  `yaml:"kind" json:"kind"`
	Lat         float64 `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lon         float64 `yaml:"lon,omitempty" json:"lon,omitempty"`
	Alt         float64 `yaml:"alt,omitempty" json:"alt,omitempty"`
	Speed       float64 `yaml:"speed,omitempty" json:"speed,omitempty"`
	Azimuth     float64 `yaml:"azimuth,omitempty" json:"azimuth,omitempty"`
	Elevation   float64 `yaml:"elevation,omitempty" json:"elevation,omitempty"`
	Pitch       float64 `yaml:"pitch,omitempty" json:"pitch,omitempty"`
	Roll        float64 `yaml:"roll,omitempty" json:"roll,omitempty"`
	Yaw         float64 `yaml:"yaw,omitempty" json:"yaw,omitempty"`
	AntennaName string  `yaml:"antenna_name,omitempty" json:"antenna_name,omitempty"`
	North       float64 `yaml:"north,omitempty" json:"north,omitempty"`
	East        float64 `yaml:"east,omitempty" json:"east,omitempty"`
	Up          float64 `yaml:"up,omitempty" json:"up,omitempty"`
}

// EmoeSpec is the scenario file's "emoe:" section — everything needed
// to submit CHECK_EMOE/START_EMOE for the platforms this scenario
// will drive.
type EmoeSpec struct {
	Platforms         []PlatformSpec         `yaml:"platforms" json:"platforms"`
	Antennas          []AntennaSpec          `yaml:"antennas,omitempty" json:"antennas,omitempty"`
	InitialConditions []InitialConditionSpec `yaml:"initial_conditions,omitempty" json:"initial_conditions,omitempty"`
}

// File is the full on-disk scenario file: the emoe section plus a
// timepoint -> newline-separated-event-lines mapping. Keys are
// formatted floating point seconds, or "-Inf" for conditions that
// must apply before the scenario clock starts.
type File struct {
	Emoe   EmoeSpec          `yaml:"emoe"`
	Events map[string]string `yaml:"events"`
}

// PlatformComponentRef is a "PLATFORM[.COMPONENT]" token: a platform
// name plus an optional single component name restricting the event
// to one of that platform's components. An empty Components means
// "every component of this platform".
type PlatformComponentRef struct {
	Platform   string
	Components []string
}

// FlowProtocol is flow_on's proto= specifier.
type FlowProtocol string

const (
	FlowUDP       FlowProtocol = "udp"
	FlowTCP       FlowProtocol = "tcp"
	FlowMulticast FlowProtocol = "multicast"
)

// FlowType is flow_on's rate-generation discipline.
type FlowType string

const (
	FlowPeriodic FlowType = "periodic"
	FlowPoisson  FlowType = "poisson"
	FlowJitter   FlowType = "jitter"
)

// FlowOnEvent starts a traffic flow between the platforms matching
// Sources and Destinations (already expanded from their source
// regexes against the scenario's declared platform names).
type FlowOnEvent struct {
	Name           string
	Sources        []string
	Destinations   []string
	Protocol       FlowProtocol
	Tos            int
	Ttl            int
	Type           FlowType
	SizeBytes      int
	PacketRate     float64
	JitterFraction float64
}

// FlowOffEvent stops one or more previously started flows, identified
// either by name, by flow id, or by re-matching source/destination.
type FlowOffEvent struct {
	Name         string
	FlowIDs      []string
	Sources      []string
	Destinations []string
}

// PovEvent repositions a platform (or one of its components).
type PovEvent struct {
	Ref       PlatformComponentRef
	Lat       float64
	Lon       float64
	Alt       float64
	Azimuth   float64
	Elevation float64
	Speed     float64
	Pitch     float64
	Roll      float64
	Yaw       float64
}

// PathlossLink is one remote-platform/decibel entry of a pathloss
// event's right-hand side.
type PathlossLink struct {
	Remote PlatformComponentRef
	DB     float64
}

// PathlossEvent sets the pathloss from Ref to each entry in Links.
type PathlossEvent struct {
	Ref   PlatformComponentRef
	Links []PathlossLink
}

// AntennaPointingEvent repoints a platform's (or component's) antenna.
type AntennaPointingEvent struct {
	Ref       PlatformComponentRef
	Azimuth   float64
	Elevation float64
}

// JamOnEvent starts jamming from Ref at the given parameters.
type JamOnEvent struct {
	Ref         PlatformComponentRef
	TxPower     float64
	Bandwidth   int
	Period      int
	DutyCycle   int
	Frequencies []int
}

// JamOffEvent stops jamming from Ref.
type JamOffEvent struct {
	Ref PlatformComponentRef
}

// EndEvent marks the scenario's final event; the driver stops issuing
// further events once it is delivered.
type EndEvent struct{}
