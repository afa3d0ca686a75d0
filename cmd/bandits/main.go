package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/db"
	"github.com/nzymedefense/nzyme/internal/designator"
	"github.com/nzymedefense/nzyme/internal/dot11"
	"github.com/nzymedefense/nzyme/internal/notify"
	"github.com/nzymedefense/nzyme/internal/timeutil"
	"github.com/nzymedefense/nzyme/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json, .yaml or .yml config file (built-in defaults if empty)")
	dbPath      = flag.String("db", "bandits.db", "Path to the sqlite bandit database")
	pcapPath    = flag.String("pcap", "", "Replay a radiotap pcap/pcapng file and exit; contact times and timeouts follow the capture timestamps")
	probe       = flag.String("probe", "pcap", "Capture probe name recorded as the contact source")
	trackBandit = flag.String("track", "", "UUID of the bandit to track (TRACKER role only)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	dbPath   string
	pcapPath string
	probe    string
	track    string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if err := db.RunMigrateCommand(os.Stdout, args[1:], *dbPath); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	cfg := config.EmptyBanditsConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadBanditsConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{dbPath: *dbPath, pcapPath: *pcapPath, probe: *probe, track: *trackBandit}
	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// loggingHopper stands in for the radio until a capture probe attaches.
type loggingHopper struct{}

func (loggingHopper) SetChannels(channels []int) error {
	log.Printf("hopper: channels set to %v", channels)
	return nil
}

// advanceTo moves a replay clock to a frame's capture time. Frames without a
// timestamp or older than the clock leave it where it is.
func advanceTo(clock *timeutil.MockClock, ts time.Time) {
	if ts.IsZero() {
		return
	}
	now := clock.Now()
	if now.IsZero() {
		clock.Set(ts)
		return
	}
	if d := ts.Sub(now); d > 0 {
		clock.Advance(d)
	}
}

func run(ctx context.Context, cfg *config.BanditsConfig, opts options, out io.Writer) error {
	var (
		clock       timeutil.Clock = timeutil.RealClock{}
		replayClock *timeutil.MockClock
	)
	if opts.pcapPath != "" {
		replayClock = timeutil.NewMockClock(time.Time{})
		clock = replayClock
	}

	database, err := db.NewDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	seeded, err := bandits.SeedRepository(ctx, database, cfg.Bandits, time.Now())
	if err != nil {
		return fmt.Errorf("failed to seed bandits: %w", err)
	}
	if seeded > 0 {
		log.Printf("seeded %d bandit(s) from configuration", seeded)
	}

	manager := bandits.NewManager(bandits.ManagerConfigFromSettings(cfg), clock)
	loaded, err := manager.LoadBandits(ctx, database)
	if err != nil {
		return err
	}
	log.Printf("loaded %d bandit(s)", loaded)

	des := designator.New(designator.ConfigFromSettings(cfg), loggingHopper{}, clock)
	if manager.Config().Role == bandits.RoleTracker {
		tracker := bandits.NewTargetTracker(clock, des)
		if opts.track != "" {
			id, err := uuid.Parse(opts.track)
			if err != nil {
				return fmt.Errorf("invalid -track bandit %q: %w", opts.track, err)
			}
			if _, ok := manager.Bandit(id); !ok {
				return fmt.Errorf("bandit %s is not registered", id)
			}
			tracker.SetCurrentlyTrackedBandit(id)
		}
		manager.OnBanditTrace(tracker.HandleTrace)
	} else {
		manager.OnBanditTrace(func(_ *bandits.Bandit, _ int, channel int) {
			des.OnBanditTrace(channel)
		})
	}

	manager.OnInitialContact(func(b *bandits.Bandit, c bandits.Contact) {
		log.Printf("new contact %s with bandit %s via %s/%s", c.UUID, b, c.Source.Node, c.Source.Name)
	})

	var sinks []*notify.Sink
	ncfg := notify.ConfigFromSettings(cfg)
	if ncfg.Broker != "" {
		client, err := notify.Connect(ncfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		sinks = append(sinks, notify.NewSink(notify.NewMQTTTransport(client, ncfg.QoS, ncfg.PublishTimeout), ncfg, clock))
	}
	if ncfg.NATSURL != "" {
		conn, err := notify.ConnectNATS(ncfg)
		if err != nil {
			return err
		}
		defer notify.CloseNATS(conn, ncfg.PublishTimeout)
		sinks = append(sinks, notify.NewSink(notify.NewNATSTransport(conn), ncfg, clock))
	}
	for _, sink := range sinks {
		sink.Attach(manager)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		manager.RunWatchdog(runCtx)
	}()
	go func() {
		defer wg.Done()
		des.Run(runCtx)
	}()
	for _, sink := range sinks {
		sink := sink
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(runCtx)
		}()
	}

	var (
		replay    dot11.ReplayStats
		replayErr error
	)
	if opts.pcapPath != "" {
		if fi, err := os.Stat(opts.pcapPath); err == nil {
			log.Printf("replaying %s (%s)", opts.pcapPath, humanize.Bytes(uint64(fi.Size())))
		}
		replay, replayErr = dot11.ReadPCAPFile(ctx, opts.pcapPath, opts.probe, func(f dot11.Frame) {
			advanceTo(replayClock, f.Metadata().Timestamp)
			manager.Identify(f)
		})
	} else {
		log.Printf("waiting for frames from capture probes, Ctrl-C to stop")
		<-ctx.Done()
	}

	cancel()
	wg.Wait()
	if replayErr != nil {
		return fmt.Errorf("replay failed: %w", replayErr)
	}

	printSummary(out, replay, manager, des, sinks)
	return nil
}

func printSummary(w io.Writer, replay dot11.ReplayStats, m *bandits.Manager, des *designator.Designator, sinks []*notify.Sink) {
	if replay.Packets > 0 {
		fmt.Fprintf(w, "Replay: %s packets, %s frames, %s unsupported\n",
			humanize.Comma(int64(replay.Packets)),
			humanize.Comma(int64(replay.Frames)),
			humanize.Comma(int64(replay.Unsupported)))
	}

	stats := m.Stats()
	fmt.Fprintf(w, "Bandits: %d registered\n", len(m.Bandits()))
	fmt.Fprintf(w, "Frames evaluated: %s, hits: %s\n", humanize.Comma(stats.FramesEvaluated), humanize.Comma(stats.Hits))

	contacts := m.Contacts()
	fmt.Fprintf(w, "Contacts: %d opened, %d retired, %d active\n", stats.ContactsOpened, stats.ContactsRetired, len(contacts))
	for _, c := range contacts {
		fmt.Fprintf(w, "  %s on %s/%s/%s: %s frames, last signal %d dBm, last seen %s\n",
			c.BanditName, c.Source.Node, c.Source.Role, c.Source.Name,
			humanize.Comma(c.FrameCount), c.LastSignal, humanize.Time(c.LastSeen))
	}

	fmt.Fprintf(w, "Designator: %s %v\n", des.Status(), des.ActiveChannels())
	for _, sink := range sinks {
		s := sink.Stats()
		fmt.Fprintf(w, "Notifications (%s): %d published, %d dropped, %d failed\n", sink.Name(), s.Published, s.Dropped, s.Failed)
	}
}
