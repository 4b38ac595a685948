package protocol

import "encoding/json"

// Tag identifies the kind of payload an Envelope carries. Tags are a
// fixed, append-only string enum — never renumbered or reused, so an
// older client talking to a newer daemon (or vice versa) can always
// tell an unknown message apart from a corrupted one.
type Tag string

// Client <-> daemon tags.
const (
	TagGetModels    Tag = "GET_MODELS"
	TagModels       Tag = "MODELS"
	TagCheckEmoe    Tag = "CHECK_EMOE"
	TagCheckResult  Tag = "CHECK_RESULT"
	TagStartEmoe    Tag = "START_EMOE"
	TagStartResult  Tag = "START_RESULT"
	TagStopEmoe     Tag = "STOP_EMOE"
	TagStopResult   Tag = "STOP_RESULT"
	TagListEmoes    Tag = "LIST_EMOES"
	TagEmoeList     Tag = "EMOE_LIST"
	TagEmoeState    Tag = "EMOE_STATE"
	TagResetClient  Tag = "RESET_CLIENT"
)

// Daemon <-> in-container agent tags.
const (
	TagAgentIdentify Tag = "AGENT_IDENTIFY"
	TagAgentControl  Tag = "AGENT_CONTROL" // START/STOP/UPDATE
	TagAgentState    Tag = "AGENT_STATE"
	TagAgentEvent    Tag = "AGENT_EVENT"
)

// ControlCommand is the daemon-to-agent payload carried by an
// AGENT_CONTROL envelope.
type ControlCommand string

const (
	ControlStart  ControlCommand = "START"
	ControlStop   ControlCommand = "STOP"
	ControlUpdate ControlCommand = "UPDATE"
)

// Envelope is the outermost wire shape: a tag plus a raw payload the
// receiver decodes according to that tag. Keeping the payload as
// json.RawMessage until the tag is known is what lets one Decoder
// loop handle every message kind without a giant discriminated-union
// struct.
type Envelope struct {
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeMessage marshals payload into an Envelope of the given tag and
// frames it for the wire.
func EncodeMessage(tag Tag, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(Envelope{Tag: tag, Payload: raw})
	if err != nil {
		return nil, err
	}
	return Encode(body), nil
}

// DecodeEnvelope unmarshals a frame body into its Envelope.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(body, &env)
	return env, err
}

// ModelsReply answers GET_MODELS with the sorted component template
// names from the daemon's model registry; platform and antenna
// template names are not included.
type ModelsReply struct {
	Components []string `json:"components"`
}

// CheckEmoeRequest carries the candidate emoe description (already
// rendered to its declarative YAML/JSON form by the client) for
// CHECK_EMOE.
type CheckEmoeRequest struct {
	Name string          `json:"name"`
	Spec json.RawMessage `json:"spec"`
}

// CheckResult answers CHECK_EMOE (and is embedded as the leading
// result of START_EMOE): except when the name is already in use,
// Message describes the requested/available cpu comparison, even on
// success.
type CheckResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// StartEmoeRequest carries the candidate emoe plus the
// client-supplied listen address/port the daemon should pass into the
// started container's environment.
type StartEmoeRequest struct {
	Name                   string          `json:"name"`
	Spec                   json.RawMessage `json:"spec"`
	ContainerListenAddress string          `json:"container_listen_address"`
	ContainerListenPort    int             `json:"container_listen_port"`
}

// StartResult answers START_EMOE.
type StartResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	EmoeID  string `json:"emoe_id,omitempty"`
}

// StopEmoeRequest carries the emoe_id to tear down.
type StopEmoeRequest struct {
	EmoeID string `json:"emoe_id"`
}

// StopResult answers STOP_EMOE.
type StopResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

// EmoeSummary is one row of a LIST_EMOES reply.
type EmoeSummary struct {
	EmoeID           string `json:"emoe_id"`
	Name             string `json:"name"`
	ClientID         string `json:"client_id"`
	State            string `json:"state"`
	Cpus             int    `json:"cpus"`
	ScenarioHostPort int    `json:"scenario_host_port,omitempty"`
}

// EmoeList answers LIST_EMOES.
type EmoeList struct {
	Emoes []EmoeSummary `json:"emoes"`
}

// EmoeStateNotification is pushed to a client asynchronously whenever
// one of its emoes transitions state.
type EmoeStateNotification struct {
	EmoeID string `json:"emoe_id"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// AgentIdentify is the first message an agent sends after connecting,
// identifying which emoe_id/container it belongs to.
type AgentIdentify struct {
	EmoeID      string `json:"emoe_id"`
	ContainerID string `json:"container_id"`
}

// AgentControlMessage carries a control command from daemon to agent.
type AgentControlMessage struct {
	Command ControlCommand  `json:"command"`
	Spec    json.RawMessage `json:"spec,omitempty"`
}

// AgentStateMessage is the agent's state report back to the daemon.
type AgentStateMessage struct {
	ContainerID string `json:"container_id"`
	EmoeID      string `json:"emoe_id"`
	State       string `json:"state"`
	Detail      string `json:"detail,omitempty"`
}

// ScenarioRequest is one framed message on the agent's scenario port
// (driver -> agent): one event line, already decoded to its typed
// scenario.*Event and re-marshaled as Payload, tagged by Kind
// ("flow_on", "pov", "end", ...). ClientSequence lets the driver
// match replies to requests on a connection carrying many in flight.
type ScenarioRequest struct {
	ClientSequence int             `json:"client_sequence"`
	Kind           string          `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	ListFlows      bool            `json:"list_flows,omitempty"`
}

// FlowTableRow is one row of the agent's traffic flow table, included
// in a ScenarioReply when the triggering request set ListFlows.
type FlowTableRow struct {
	FlowIndex int     `json:"flow_index"`
	FlowName  string  `json:"flow_name"`
	Active    bool    `json:"active"`
	FlowID    int     `json:"flow_id"`
	Src       string  `json:"src"`
	Dst       string  `json:"dst"`
	Tos       int     `json:"tos"`
	Ttl       int     `json:"ttl"`
	Proto     string  `json:"proto"`
	Pattern   string  `json:"pattern"`
	Size      int     `json:"size"`
	Rate      float64 `json:"rate"`
	Jitter    float64 `json:"jitter"`
}

// ScenarioReply answers a ScenarioRequest on the same connection.
type ScenarioReply struct {
	ClientSequence int            `json:"client_sequence"`
	ServerSequence int            `json:"server_sequence"`
	OK             bool           `json:"ok"`
	Message        string         `json:"message"`
	FlowTable      []FlowTableRow `json:"flow_table,omitempty"`
}
