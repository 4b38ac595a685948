package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adjacentlink/emexd/pkg/client"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Args:  cobra.NoArgs,
	Short: "Interactively build and submit an emoe against a running daemon",
	Long: `An interactive command loop for assembling an emoe spec one
platform/antenna/param/location at a time, then submitting, listing,
and stopping emoes against the connected daemon.`,
	RunE: runShell,
}

// shellSession holds the emoe spec under construction plus the daemon
// connection it operates against, mirroring the original shell's
// in-memory builder state.
type shellSession struct {
	c *client.Client

	platforms map[string]*scenario.PlatformSpec
	antennas  map[string]*scenario.AntennaSpec
	ics       []scenario.InitialConditionSpec
}

func runShell(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return fmt.Errorf("dialing emexd: %w", err)
	}
	defer c.Close()

	s := &shellSession{
		c:         c,
		platforms: make(map[string]*scenario.PlatformSpec),
		antennas:  make(map[string]*scenario.AntennaSpec),
	}

	fmt.Println("emexctl shell — type 'help' for commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("emexctl> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName := fields[0]
		cmdArgs := fields[1:]

		if cmdName == "quit" || cmdName == "exit" {
			return nil
		}
		if err := s.dispatch(cmdName, cmdArgs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func (s *shellSession) dispatch(cmdName string, args []string) error {
	switch cmdName {
	case "help":
		s.help()
		return nil
	case "listmodels":
		return s.listModels()
	case "buildantenna":
		return s.buildAntenna(args)
	case "buildplatform":
		return s.buildPlatform(args)
	case "setparam":
		return s.setParam(args)
	case "setlocation":
		return s.setLocation(args)
	case "startemoe":
		return s.startEmoe(args)
	case "listemoes":
		return s.listEmoes()
	case "stopemoe":
		return s.stopEmoe(args)
	default:
		return fmt.Errorf("unrecognized command %q, type 'help' for a list", cmdName)
	}
}

func (s *shellSession) help() {
	fmt.Println(`commands:
  listmodels                                        list declared component templates
  buildantenna <name> <type>                        declare an antenna instance
  buildplatform <name> <template>                    declare a platform instance
  setparam <platform> <component.group.param> <val>  override a platform's param
  setlocation <platform> <lat> <lon> <alt> [azimuth] [speed]
                                                      set a platform's initial pov
  startemoe <emoename>                               submit the built spec as emoename
  listemoes                                          list emoes known to the daemon
  stopemoe <emoeid>                                  stop a running/queued emoe
  quit / exit                                        leave the shell`)
}

func (s *shellSession) listModels() error {
	reply, err := s.c.GetModels()
	if err != nil {
		return err
	}
	names := append([]string(nil), reply.Components...)
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func (s *shellSession) buildAntenna(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: buildantenna <name> <type>")
	}
	s.antennas[args[0]] = &scenario.AntennaSpec{Name: args[0], Type: args[1]}
	fmt.Printf("antenna %q declared\n", args[0])
	return nil
}

func (s *shellSession) buildPlatform(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: buildplatform <name> <template>")
	}
	s.platforms[args[0]] = &scenario.PlatformSpec{Name: args[0], Template: args[1], Overrides: make(map[string]string)}
	fmt.Printf("platform %q declared\n", args[0])
	return nil
}

func (s *shellSession) setParam(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: setparam <platform> <component.group.param> <value>")
	}
	plt, ok := s.platforms[args[0]]
	if !ok {
		return fmt.Errorf("no platform %q declared yet", args[0])
	}
	if plt.Overrides == nil {
		plt.Overrides = make(map[string]string)
	}
	plt.Overrides[args[1]] = args[2]
	return nil
}

func (s *shellSession) setLocation(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: setlocation <platform> <lat> <lon> <alt> [azimuth] [speed]")
	}
	if _, ok := s.platforms[args[0]]; !ok {
		return fmt.Errorf("no platform %q declared yet", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("lon: %w", err)
	}
	alt, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("alt: %w", err)
	}
	ic := scenario.InitialConditionSpec{Platform: args[0], Kind: "pov", Lat: lat, Lon: lon, Alt: alt}
	if len(args) > 4 {
		if ic.Azimuth, err = strconv.ParseFloat(args[4], 64); err != nil {
			return fmt.Errorf("azimuth: %w", err)
		}
	}
	if len(args) > 5 {
		if ic.Speed, err = strconv.ParseFloat(args[5], 64); err != nil {
			return fmt.Errorf("speed: %w", err)
		}
	}
	s.replaceInitialCondition(ic)
	return nil
}

// replaceInitialCondition keeps at most one pov initial condition per
// platform — a second setlocation call for the same platform overwrites
// rather than stacking.
func (s *shellSession) replaceInitialCondition(ic scenario.InitialConditionSpec) {
	for i, existing := range s.ics {
		if existing.Platform == ic.Platform && existing.Kind == ic.Kind {
			s.ics[i] = ic
			return
		}
	}
	s.ics = append(s.ics, ic)
}

func (s *shellSession) startEmoe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: startemoe <emoename>")
	}
	if len(s.platforms) == 0 {
		return fmt.Errorf("no platforms declared, use buildplatform first")
	}

	spec := scenario.EmoeSpec{InitialConditions: s.ics}
	names := make([]string, 0, len(s.platforms))
	for name := range s.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec.Platforms = append(spec.Platforms, *s.platforms[name])
	}
	antennaNames := make([]string, 0, len(s.antennas))
	for name := range s.antennas {
		antennaNames = append(antennaNames, name)
	}
	sort.Strings(antennaNames)
	for _, name := range antennaNames {
		spec.Antennas = append(spec.Antennas, *s.antennas[name])
	}

	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding emoe spec: %w", err)
	}

	check, err := s.c.CheckEmoe(args[0], raw)
	if err != nil {
		return fmt.Errorf("check_emoe: %w", err)
	}
	fmt.Println(check.Message)
	if !check.OK {
		return fmt.Errorf("%s does not currently fit", args[0])
	}

	start, err := s.c.StartEmoe(protocol.StartEmoeRequest{Name: args[0], Spec: raw})
	if err != nil {
		return fmt.Errorf("start_emoe: %w", err)
	}
	if !start.OK {
		return fmt.Errorf("start failed: %s", start.Message)
	}
	fmt.Printf("started %s as emoe_id %s\n", args[0], start.EmoeID)
	return nil
}

func (s *shellSession) listEmoes() error {
	list, err := s.c.ListEmoes()
	if err != nil {
		return err
	}
	for _, e := range list.Emoes {
		fmt.Printf("%-20s %-36s %-12s cpus=%d\n", e.Name, e.EmoeID, e.State, e.Cpus)
	}
	return nil
}

func (s *shellSession) stopEmoe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stopemoe <emoeid>")
	}
	stop, err := s.c.StopEmoe(args[0])
	if err != nil {
		return err
	}
	fmt.Println(stop.Message)
	return nil
}
