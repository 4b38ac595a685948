package runtime

import "sort"

// Device is the common shape of every network device a
// ContainerRuntime tracks: a name, an ipv4 address, and a mask
// length.
type Device struct {
	Name        string
	IPv4Address string
	MaskLen     int
}

// HostDevice is a plain host-side network interface (no radio, no
// bridge mac).
type HostDevice struct {
	Device
}

// RadioDevice is an emane radio interface, additionally carrying the
// nemid the radio model uses to address it on the emulated RF
// network.
type RadioDevice struct {
	Device
	NemID int64
}

// BridgeDevice is a host-bridge interface additionally carrying a mac
// address (used for L2 backplane devices like backchan0).
type BridgeDevice struct {
	Device
	MACAddress string
}

// AnyDevice is the interface every device kind satisfies, letting
// ContainerRuntime store them uniformly while still allowing callers
// to type-switch for kind-specific fields (radio_endpoints, etc).
type AnyDevice interface {
	DeviceName() string
}

func (d HostDevice) DeviceName() string   { return d.Name }
func (d RadioDevice) DeviceName() string  { return d.Name }
func (d BridgeDevice) DeviceName() string { return d.Name }

// ComponentDescriptor is the minimal component-identifying
// information a ContainerRuntime needs — hostname plus the three
// descriptor flags — without importing the full model.Component
// (runtime objects outlive, and are looked up independently of, the
// typed model that produced them).
type ComponentDescriptor struct {
	Hostname           string
	TrafficEndpoint    bool
	TestpointPublisher bool
	EmaneNode          bool
}

// ContainerRuntime is the live per-(platform,component) device table:
// every network interface that component's container namespace
// carries, keyed by device name.
type ContainerRuntime struct {
	Hostname   string
	Descriptor ComponentDescriptor
	devices    map[string]AnyDevice
}

// NewContainerRuntime builds an empty ContainerRuntime for one
// component instance.
func NewContainerRuntime(hostname string, desc ComponentDescriptor) *ContainerRuntime {
	return &ContainerRuntime{Hostname: hostname, Descriptor: desc, devices: make(map[string]AnyDevice)}
}

// AddDevice registers (or overwrites) a device by name.
func (c *ContainerRuntime) AddDevice(name string, d AnyDevice) { c.devices[name] = d }

// GetDevice looks up a device by name.
func (c *ContainerRuntime) GetDevice(name string) (AnyDevice, bool) {
	d, ok := c.devices[name]
	return d, ok
}

// Devices returns every device, sorted by name for deterministic
// iteration in config-tree generation.
func (c *ContainerRuntime) Devices() []AnyDevice {
	names := make([]string, 0, len(c.devices))
	for n := range c.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]AnyDevice, len(names))
	for i, n := range names {
		out[i] = c.devices[n]
	}
	return out
}

// RadioDevices returns just the radio-kind devices, sorted by name.
func (c *ContainerRuntime) RadioDevices() []RadioDevice {
	var out []RadioDevice
	for _, d := range c.Devices() {
		if rd, ok := d.(RadioDevice); ok {
			out = append(out, rd)
		}
	}
	return out
}

// HostDevices returns just the host-kind devices, sorted by name.
func (c *ContainerRuntime) HostDevices() []HostDevice {
	var out []HostDevice
	for _, d := range c.Devices() {
		if hd, ok := d.(HostDevice); ok {
			out = append(out, hd)
		}
	}
	return out
}
