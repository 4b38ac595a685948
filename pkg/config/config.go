// Package config implements the daemon's XML configuration file:
// listen addresses, the allowed cpu/host-port pools, container engine
// settings, and workdir lifecycle policy. Re-expressed from the
// teacher's pkg/config/config.go (YAML, struct-per-concern,
// Load/Save/Validate/DefaultConfig) using encoding/xml per spec.md
// §6's explicit element list — justified in DESIGN.md: no pack
// library offers a more idiomatic attribute-heavy XML binding than
// the stdlib's own struct tags.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"runtime"
)

// ContainerDirectoryAction controls what happens to a finished emoe's
// workdir.
type ContainerDirectoryAction string

const (
	DirectoryKeep            ContainerDirectoryAction = "keep"
	DirectoryDelete          ContainerDirectoryAction = "delete"
	DirectoryDeleteOnSuccess ContainerDirectoryAction = "deleteonsuccess"
)

// AddressPort is an `address="..." port="..."` XML element.
type AddressPort struct {
	Address string `xml:"address,attr"`
	Port    int    `xml:"port,attr"`
}

// EnableFlag is an `enable="true|false"` XML element.
type EnableFlag struct {
	Enable bool `xml:"enable,attr"`
}

// idsAttr/portsAttr/nameAttr/levelAttr/actionAttr/formatAttr/countAttr
// each wrap the one named attribute spec.md's element list gives that
// element — kept as distinct types (rather than one generic
// single-attribute struct) since encoding/xml's struct tags can't
// parameterize the attribute name at use.
type idsAttr struct {
	IDs string `xml:"ids,attr"`
}

type portsAttr struct {
	Ports string `xml:"ports,attr"`
}

type nameAttr struct {
	Name string `xml:"name,attr"`
}

type levelAttr struct {
	Level string `xml:"level,attr"`
}

type actionAttr struct {
	Action ContainerDirectoryAction `xml:"action,attr"`
}

type formatAttr struct {
	Format string `xml:"format,attr"`
}

type countAttr struct {
	Count int `xml:"count,attr"`
}

// Config is the daemon's full XML configuration, matching spec.md
// §6.4's element list exactly.
type Config struct {
	XMLName xml.Name `xml:"emexd-config"`

	ClientListen    AddressPort `xml:"client-listen"`
	ContainerListen AddressPort `xml:"container-listen"`
	StateMessages   EnableFlag  `xml:"state-messages"`

	AllowedCpus      idsAttr   `xml:"allowed-cpus"`
	AllowedHostPorts portsAttr `xml:"allowed-host-ports"`

	DockerImage            nameAttr   `xml:"docker-image"`
	EmexcontainerdLogLevel levelAttr  `xml:"emexcontainerd-loglevel"`
	StopAllContainers      EnableFlag `xml:"stop-all-containers"`
	EmexDirectory          actionAttr `xml:"emexdirectory"`
	ContainerDatetimeTag   formatAttr `xml:"container-datetime-tag"`
	ContainerWorkers       countAttr  `xml:"container-workers"`
}

// DefaultConfig returns the daemon's built-in defaults: every host cpu
// except the first min(N/4, 8) (reserved for the host OS and the
// daemon process itself), matching spec.md's data-flow note on the
// cpu pool's default set.
func DefaultConfig() *Config {
	return &Config{
		ClientListen:           AddressPort{Address: "127.0.0.1", Port: 49901},
		ContainerListen:        AddressPort{Address: "172.17.0.1", Port: 49902},
		StateMessages:          EnableFlag{Enable: true},
		AllowedCpus:            idsAttr{IDs: defaultCpuRange()},
		AllowedHostPorts:       portsAttr{Ports: "5000-6000"},
		DockerImage:            nameAttr{Name: "emexd/emexcontainerd:latest"},
		EmexcontainerdLogLevel: levelAttr{Level: "info"},
		StopAllContainers:      EnableFlag{Enable: true},
		EmexDirectory:          actionAttr{Action: DirectoryDeleteOnSuccess},
		ContainerDatetimeTag:   formatAttr{Format: "suffix"},
		ContainerWorkers:       countAttr{Count: 4},
	}
}

// reservedHostCpus returns min(n/4, 8), the count of low-numbered cpu
// ids excluded from the default pool.
func reservedHostCpus(n int) int {
	reserved := n / 4
	if reserved > 8 {
		reserved = 8
	}
	return reserved
}

func defaultCpuRange() string {
	n := runtime.NumCPU()
	reserved := reservedHostCpus(n)
	if reserved >= n-1 {
		return fmt.Sprintf("%d", n-1)
	}
	return fmt.Sprintf("%d-%d", reserved, n-1)
}

// Load reads and parses path, falling back to DefaultConfig if path
// doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "emexd.xml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := xml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes c to path as XML.
func (c *Config) Save(path string) error {
	data, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the decoded Config for internal consistency.
func (c *Config) Validate() error {
	if c.ClientListen.Port <= 0 {
		return fmt.Errorf("client-listen port must be positive")
	}
	if c.ContainerListen.Port <= 0 {
		return fmt.Errorf("container-listen port must be positive")
	}
	if _, err := ParseNumRange(c.AllowedCpus.IDs); err != nil {
		return fmt.Errorf("allowed-cpus: %w", err)
	}
	if _, err := ParseNumRange(c.AllowedHostPorts.Ports); err != nil {
		return fmt.Errorf("allowed-host-ports: %w", err)
	}
	if c.DockerImage.Name == "" {
		return fmt.Errorf("docker-image name is required")
	}
	switch c.EmexDirectory.Action {
	case DirectoryKeep, DirectoryDelete, DirectoryDeleteOnSuccess, "":
	default:
		return fmt.Errorf("emexdirectory action %q invalid", c.EmexDirectory.Action)
	}
	if c.ContainerWorkers.Count < 1 {
		return fmt.Errorf("container-workers count must be at least 1")
	}
	return nil
}
