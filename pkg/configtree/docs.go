package configtree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adjacentlink/emexd/pkg/runtime"
)

// writeHostFile writes etce's hostfile: one "hostname ipv4address"
// line per (platform, component) that carries an ota or backchan
// device, sorted by hostname for determinism.
func writeHostFile(rt *runtime.EmoeRuntime, docDir string) error {
	type row struct{ hostname, addr string }
	var rows []row
	for _, cr := range rt.ContainerRuntimes() {
		addr := ""
		if d, ok := cr.GetDevice("backchan0"); ok {
			addr = deviceAddr(d)
		} else if d, ok := cr.GetDevice("ota0"); ok {
			addr = deviceAddr(d)
		}
		if addr == "" {
			continue
		}
		rows = append(rows, row{cr.Hostname, addr})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].hostname < rows[j].hostname })

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", r.hostname, r.addr)
	}
	return os.WriteFile(filepath.Join(docDir, "hostfile"), []byte(b.String()), 0o644)
}

// writePortMap writes the daemon-assigned host-port -> service
// mapping, one line per entry, sorted by host port — this is the
// "mgen port info" the original etce tooling reads to find each
// container's externally reachable control ports.
func writePortMap(rt *runtime.EmoeRuntime, docDir string) error {
	mappings := rt.HostPortMappings()
	hostPorts := make([]int, 0, len(mappings))
	for hp := range mappings {
		hostPorts = append(hostPorts, hp)
	}
	sort.Ints(hostPorts)

	var b strings.Builder
	for _, hp := range hostPorts {
		m := mappings[hp]
		fmt.Fprintf(&b, "%s %d %d\n", m.ServiceName, m.ContainerPort, hp)
	}
	return os.WriteFile(filepath.Join(docDir, "portmap"), []byte(b.String()), 0o644)
}

// writeNemIDProfileIDMap writes the "platform.component nemid
// profileid" lines the original etce tooling uses to locate each
// radio's antenna profile by nemid, built from the just-written
// antenna manifest's assigned ids.
func writeNemIDProfileIDMap(rt *runtime.EmoeRuntime, docDir string, profileIDs map[[2]string]int) error {
	type row struct {
		name  string
		nemID int64
		id    int
	}
	var rows []row
	for _, plt := range rt.Emoe.Platforms() {
		for _, c := range plt.Components {
			nemP, ok := c.Param("emane", "nemid")
			if !ok || !nemP.Configured() {
				continue
			}
			id, ok := profileIDs[[2]string{plt.Name, c.Name}]
			if !ok {
				continue
			}
			rows = append(rows, row{plt.Name + "." + c.Name, nemP.First().Int, id})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].nemID < rows[j].nemID })

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %d %d\n", r.name, r.nemID, r.id)
	}
	return os.WriteFile(filepath.Join(docDir, "nemidprofileidmap"), []byte(b.String()), 0o644)
}
