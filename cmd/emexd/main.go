package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adjacentlink/emexd/pkg/config"
	"github.com/adjacentlink/emexd/pkg/configtree"
	"github.com/adjacentlink/emexd/pkg/containerengine"
	"github.com/adjacentlink/emexd/pkg/containerengine/dockerengine"
	"github.com/adjacentlink/emexd/pkg/daemon"
	"github.com/adjacentlink/emexd/pkg/daemon/metrics"
	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/orchestrator"
	"github.com/adjacentlink/emexd/pkg/resource"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// bindMountTarget is the path the in-container agent expects its emoe
// workdir bind-mounted at, matching the original's fixed container
// mount point.
const bindMountTarget = "/tmp/etce"

var (
	cfgFile     string
	verbose     bool
	modelDir    string
	templateDir string
	workdirBase string
	version     = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "emexd",
	Short: "Emulation orchestrator daemon for wireless network emulations",
	Long: `emexd accepts client requests to build and run emulated-network
emulations (EMOEs) against a Docker container engine, tracking the
daemon's fixed cpu and host-port pools and driving each EMOE's
container through its full start/run/stop lifecycle.`,
	Version: version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "daemon config file (default is ./emexd.xml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&modelDir, "model-dir", "/etc/emexd/model", "root of the platform/component/antenna template tree")
	rootCmd.Flags().StringVar(&templateDir, "template-dir", "/etc/emexd/templates", "root of the per-component config file templates")
	rootCmd.Flags().StringVar(&workdirBase, "workdir-base", "/var/lib/emexd/emoes", "directory persisted per-emoe workdirs are created under")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg := model.NewRegistry()
	if err := reg.LoadDir(modelDir); err != nil {
		return fmt.Errorf("loading model templates from %s: %w", modelDir, err)
	}

	cpuIDs, err := config.ParseNumRange(cfg.AllowedCpus.IDs)
	if err != nil {
		return fmt.Errorf("allowed-cpus: %w", err)
	}
	hostPortIDs, err := config.ParseNumRange(cfg.AllowedHostPorts.Ports)
	if err != nil {
		return fmt.Errorf("allowed-host-ports: %w", err)
	}
	cpus := resource.New("cpu", cpuIDs, true)
	hostPorts := resource.New("host_port", hostPortIDs, true)

	engine, err := dockerengine.New()
	if err != nil {
		return fmt.Errorf("creating docker engine: %w", err)
	}
	defer engine.Close()

	worker := containerengine.NewWorker(engine)

	builder := configtree.NewBuilder(templateDir, nil)
	configBuilder := configtree.OrchestratorAdapter{
		Builder:     builder,
		EmexdConfig: configtree.EmexdConfig{LogLevel: cfg.EmexcontainerdLogLevel.Level},
	}

	timestamper := runtime.NewTimestamper(workdirBase, nil)

	m := metrics.New()

	// orchestrator.Manager, containerengine.Manager, and daemon.Server
	// each need a reference to one of the other two before any of them
	// can be constructed (Manager needs a ContainerStarter and a
	// ClientNotifier; the container manager needs an
	// OrchestratorCallback back into Manager; the server needs an
	// OrchestratorManager). orchProxy breaks the cycle by forwarding to
	// a *orchestrator.Manager filled in once it exists.
	proxy := &orchProxy{}

	containerListenAddr := fmt.Sprintf("%s:%d", cfg.ContainerListen.Address, cfg.ContainerListen.Port)
	containerMgr := containerengine.NewManager(hostPorts, worker, proxy, cfg.DockerImage.Name, bindMountTarget)

	server := daemon.NewServer(proxy, reg, m)

	orchMgr := orchestrator.New(
		cpus, hostPorts,
		containerMgr,
		configBuilder,
		server,
		server,
		workdirRemover{},
		timestamper,
		orchestrator.EmexDirectoryAction(cfg.EmexDirectory.Action),
		runtime.ContainerNameFormat(cfg.ContainerDatetimeTag.Format),
	)
	proxy.mgr = orchMgr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.ClientListen.Address, cfg.ClientListen.Port))
	if err != nil {
		return fmt.Errorf("listening on client-listen %s: %w", cfg.ClientListen.Address, err)
	}
	agentLn, err := net.Listen("tcp", containerListenAddr)
	if err != nil {
		return fmt.Errorf("listening on container-listen %s: %w", containerListenAddr, err)
	}

	go worker.Run(ctx)
	go containerMgr.DrainResults(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- server.ServeClients(ctx, clientLn) }()
	go func() { errCh <- server.ServeAgents(ctx, agentLn) }()

	log.Info().
		Str("client_listen", fmt.Sprintf("%s:%d", cfg.ClientListen.Address, cfg.ClientListen.Port)).
		Str("container_listen", containerListenAddr).
		Int("cpus", cpus.NumAvailable()).
		Int("host_ports", hostPorts.NumAvailable()).
		Msg("emexd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		if cfg.StopAllContainers.Enable {
			orchMgr.StopAll()
		}
		return nil
	case err := <-errCh:
		cancel()
		return err
	}
}

// workdirRemover implements orchestrator.WorkdirRemover over the local
// filesystem.
type workdirRemover struct{}

func (workdirRemover) RemoveWorkdir(path string) error {
	return os.RemoveAll(path)
}

// orchProxy forwards to a *orchestrator.Manager set after construction,
// implementing both containerengine.OrchestratorCallback and
// daemon.OrchestratorManager so the container manager and the server
// can each be built before the Manager they both point at exists.
type orchProxy struct {
	mgr *orchestrator.Manager
}

func (p *orchProxy) RegisterStartedContainer(rt *runtime.EmoeRuntime, container interface{}, reportedName string) {
	p.mgr.RegisterStartedContainer(rt, container, reportedName)
}

func (p *orchProxy) HandleFailedContainerStart(rt *runtime.EmoeRuntime) {
	p.mgr.HandleFailedContainerStart(rt)
}

func (p *orchProxy) CheckEmoe(e *emoe.Emoe) (bool, string) {
	return p.mgr.CheckEmoe(e)
}

func (p *orchProxy) StartEmoe(clientID string, e *emoe.Emoe, containerListenAddress string, containerListenPort int) (*runtime.EmoeRuntime, bool, string) {
	return p.mgr.StartEmoe(clientID, e, containerListenAddress, containerListenPort)
}

func (p *orchProxy) StopEmoe(emoeID string) (bool, string, string) {
	return p.mgr.StopEmoe(emoeID)
}

func (p *orchProxy) HandleContainerStateMessage(emoeID string, reported emoe.State, detail string) {
	p.mgr.HandleContainerStateMessage(emoeID, reported, detail)
}

func (p *orchProxy) EmoeRuntimesByClientID(clientID string) []*runtime.EmoeRuntime {
	return p.mgr.EmoeRuntimesByClientID(clientID)
}

func (p *orchProxy) EmoeRuntimeByID(emoeID string) (*runtime.EmoeRuntime, bool) {
	return p.mgr.EmoeRuntimeByID(emoeID)
}

func (p *orchProxy) ResetClient(clientID string) {
	p.mgr.ResetClient(clientID)
}

func (p *orchProxy) TotalCpus() int { return p.mgr.TotalCpus() }

func (p *orchProxy) AvailableCpus() int { return p.mgr.AvailableCpus() }
