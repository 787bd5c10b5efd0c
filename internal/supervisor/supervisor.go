// Package supervisor wires every other component together and owns the
// shutdown ordering (C11).
package supervisor

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mazegame/server/internal/config"
	"mazegame/server/internal/console"
	"mazegame/server/internal/dispatch"
	"mazegame/server/internal/game"
	"mazegame/server/internal/httpapi"
	"mazegame/server/internal/logging"
	"mazegame/server/internal/maze"
	"mazegame/server/internal/registry"
	"mazegame/server/internal/store"
	"mazegame/server/internal/store/jsonstore"
	"mazegame/server/internal/store/pgstore"
	"mazegame/server/internal/wsconn"
)

const (
	tickInterval        = 100 * time.Millisecond
	connWorkerDeadline  = 3 * time.Second
	consoleDrainDeadline = 500 * time.Millisecond
)

// Supervisor owns every long-lived component and drives startup/shutdown.
type Supervisor struct {
	cfg     config.Config
	loggers *logging.Loggers

	backend store.Store
	reg     *registry.Registry
	engine  *game.Engine
	disp    *dispatch.Dispatcher
	listener *wsconn.Listener
	httpSrv  *httpapi.Server
	console  *console.Console

	shutdown chan struct{}
	tickDone chan struct{}
}

// New resolves every component from cfg but does not yet start serving.
func New(cfg config.Config) (*Supervisor, error) {
	loggers, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: logging: %w", err)
	}

	backend, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: store: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	reg := registry.New(rng)
	records, err := backend.LoadPlayers()
	if err != nil {
		loggers.With(logging.CategoryDatabase).WithError(err).Warn("failed to load players, starting with an empty registry")
	} else {
		reg.Load(records)
	}

	m, err := loadOrGenerateMaze(backend, rng)
	if err != nil {
		return nil, fmt.Errorf("supervisor: maze: %w", err)
	}

	eng := game.New(m, rng)

	chatLog := &chatLogAdapter{backend: backend}
	disp := dispatch.New(reg, eng, chatLog, loggers.With(logging.CategoryNetwork))

	listener := wsconn.NewListener(fmt.Sprintf(":%d", cfg.WebsocketPort()), disp, loggers.With(logging.CategoryNetwork))

	httpSrv := httpapi.New(
		fmt.Sprintf(":%d", cfg.Port),
		cfg.WebPath,
		httpapi.ConfigPayload{
			WebsocketPort: cfg.WebsocketPort(),
			GameVersion:   cfg.GameVersion,
			ServerName:    cfg.ServerName,
			MazeSize:      fmt.Sprintf("%dx%dx%d", m.Grid.Width, m.Grid.Height, m.Grid.Layers),
			MaxPlayers:    cfg.MaxPlayers,
		},
		reg,
		loggers.With(logging.CategoryWeb),
	)

	con := console.New(eng, reg, disp, disp, loggers.With(logging.CategoryCommand))

	return &Supervisor{
		cfg:      cfg,
		loggers:  loggers,
		backend:  backend,
		reg:      reg,
		engine:   eng,
		disp:     disp,
		listener: listener,
		httpSrv:  httpSrv,
		console:  con,
		shutdown: make(chan struct{}),
		tickDone: make(chan struct{}),
	}, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DBType == "postgres" {
		return pgstore.New(cfg.DatabaseURL)
	}
	return jsonstore.New(cfg.DataPath)
}

func loadOrGenerateMaze(backend store.Store, rng *rand.Rand) (*maze.Maze, error) {
	snap, ok, err := backend.LoadMaze()
	if err != nil {
		return nil, err
	}
	if ok {
		return snapshotToMaze(snap), nil
	}
	m := maze.Generate(maze.DefaultWidth, maze.DefaultHeight, maze.DefaultLayers, rng)
	if err := backend.SaveMaze(mazeToSnapshot(m)); err != nil {
		return nil, err
	}
	return m, nil
}

func mazeToSnapshot(m *maze.Maze) store.MazeSnapshot {
	coins := m.Coins.All()
	coinSnaps := make([]store.CoinSnapshot, len(coins))
	for i, c := range coins {
		coinSnaps[i] = store.CoinSnapshot{Pos: [3]int{c.Pos.X, c.Pos.Y, c.Pos.Z}, Collected: c.Collected}
	}
	return store.MazeSnapshot{
		Width: m.Grid.Width, Height: m.Grid.Height, Layers: m.Grid.Layers,
		Cells: m.Grid.Flatten(),
		Coins: coinSnaps,
		Start: [3]int{m.Start.X, m.Start.Y, m.Start.Z},
		End:   [3]int{m.End.X, m.End.Y, m.End.Z},
	}
}

func snapshotToMaze(snap store.MazeSnapshot) *maze.Maze {
	grid := maze.NewGridFromCells(snap.Width, snap.Height, snap.Layers, snap.Cells)
	coins := make([]maze.Coin, len(snap.Coins))
	for i, c := range snap.Coins {
		coins[i] = maze.Coin{Pos: maze.Pos{X: c.Pos[0], Y: c.Pos[1], Z: c.Pos[2]}, Collected: c.Collected}
	}
	return &maze.Maze{
		Grid:  grid,
		Coins: maze.NewCoinPoolFromCoins(coins),
		Start: maze.Pos{X: snap.Start[0], Y: snap.Start[1], Z: snap.Start[2]},
		End:   maze.Pos{X: snap.End[0], Y: snap.End[1], Z: snap.End[2]},
	}
}

// chatLogAdapter satisfies dispatch.ChatLog by forwarding to the store.
type chatLogAdapter struct {
	backend store.Store
}

func (a *chatLogAdapter) Append(sender, message string) error {
	return a.backend.AppendChatLog(sender, message)
}

// Run starts every component, blocks until a shutdown signal arrives, and
// then performs the §5 shutdown sequence in order. It returns the process
// exit code.
func (s *Supervisor) Run() int {
	log := s.loggers.With(logging.CategorySystem)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.WebsocketPort()))
	if err != nil {
		log.WithError(err).Error("failed to bind game socket port")
		return 1
	}
	go func() {
		if err := s.listener.Serve(ln); err != nil {
			log.WithError(err).Error("game socket listener stopped unexpectedly")
		}
	}()

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	go s.runTickLoop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.console.Run(os.Stdin, s.shutdown,
			func() { s.loggers.Console.SetPrompt("> ") },
			func(line string) { s.loggers.Console.WriteLine(line) })
	}()

	log.WithFields(logrus.Fields{
		"httpPort": s.cfg.Port,
		"wsPort":   s.cfg.WebsocketPort(),
	}).Info("server started")

	<-sigCh
	log.Info("shutdown signal received")
	return s.shutdownSequence(consoleDone)
}

func (s *Supervisor) runTickLoop() {
	defer close(s.tickDone)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.engine.Tick(now)
		}
	}
}

// shutdownSequence performs the §5 order: (1) set the shutdown flag,
// (2)-(3) close the listener and its connections, (4) leave the connection
// workers to exit on their closed sockets without joining them, (5) stop
// the tick loop, (6) drain the console, (7) persist durable state.
func (s *Supervisor) shutdownSequence(consoleDone <-chan struct{}) int {
	log := s.loggers.With(logging.CategorySystem)

	close(s.shutdown) // (1)

	s.listener.Shutdown(connWorkerDeadline) // (2)+(3); (4) workers are detached
	if err := s.httpSrv.Shutdown(connWorkerDeadline); err != nil {
		log.WithError(err).Warn("http server shutdown did not complete cleanly")
	}

	select {
	case <-s.tickDone: // (5)
	case <-time.After(time.Second):
		log.Warn("tick loop did not stop within deadline")
	}

	select {
	case <-consoleDone: // (6)
	case <-time.After(consoleDrainDeadline):
		log.Warn("console did not drain within deadline, detaching")
	}

	if err := s.persist(); err != nil { // (7)
		log.WithError(err).Error("failed to persist durable state during shutdown")
	}
	s.loggers.Close()

	log.Info("shutdown complete")
	return 0
}

func (s *Supervisor) persist() error {
	if err := s.backend.SavePlayers(s.reg.Snapshot()); err != nil {
		return err
	}
	if err := s.backend.SaveMaze(mazeToSnapshot(s.engine.Maze())); err != nil {
		return err
	}
	return s.backend.Backup()
}
