// Package main is the entry point for actorcored, a small demo binary
// that wires a supervised counter server behind the Registry, Supervisor,
// and Timer Service, persisting its state through a bbolt-backed
// StorageAdapter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kodflow/actorcore/bootstrap"
	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/registry"
	"github.com/kodflow/actorcore/server"
	"github.com/kodflow/actorcore/storage/boltadapter"
	"github.com/kodflow/actorcore/supervisor"
	"github.com/kodflow/actorcore/timer"
)

var version string = "dev"

// counterCall requests the current count.
type counterCall struct{}

// counterCast is the message the Timer Service redelivers on every tick.
type counterCast struct {
	By int
}

func counterBehavior() server.Behavior[int, counterCall, counterCast, int] {
	return server.Behavior[int, counterCall, counterCast, int]{
		Init: func(ctx context.Context) (int, error) { return 0, nil },
		HandleCall: func(ctx context.Context, msg counterCall, state int) (int, int, error) {
			return state, state, nil
		},
		HandleCast: func(ctx context.Context, msg counterCast, state int) (int, error) {
			return state + msg.By, nil
		},
	}
}

func main() {
	configPath := flag.String("config", "tree.yaml", "path to the supervision tree YAML file")
	storagePath := flag.String("storage", "actorcore.db", "path to the bbolt state file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("actorcored %s\n", version)
		return
	}

	if err := run(*configPath, *storagePath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, storagePath string) error {
	reg := registry.New()

	// Opened once here, not inside startCounter: a process can't open the
	// same bbolt file twice, and the Timer Service needs this same handle.
	adapter, err := boltadapter.Open(storagePath, 0)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	app, err := bootstrap.InitializeApp(bootstrap.Params{
		ConfigPath:  configPath,
		StoragePath: storagePath,
		Registry:    reg,
		Storage:     adapter,
		Starters: map[string]func() (supervisor.ChildHandle, error){
			"counter": func() (supervisor.ChildHandle, error) {
				return startCounter(reg, adapter)
			},
		},
	})
	if err != nil {
		_ = adapter.Close()
		return fmt.Errorf("initializing app: %w", err)
	}
	defer app.Cleanup()

	if _, err := app.Timer.Schedule(context.Background(), "counter", counterCast{By: 1}, time.Second, timer.ScheduleOptions{RepeatMs: 1000}); err != nil {
		return fmt.Errorf("scheduling heartbeat: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	return nil
}

func startCounter(reg *registry.Registry, adapter *boltadapter.Adapter) (supervisor.ChildHandle, error) {
	handle, err := server.Start(counterBehavior(), server.Options[int]{
		Name: "counter",
		Persistence: &persistence.Options[int]{
			Adapter:           adapter,
			Key:               "counter",
			SchemaVersion:     1,
			RestoreOnStart:    true,
			PersistOnShutdown: true,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := reg.Register("counter", timer.Adapt(handle)); err != nil {
		return nil, fmt.Errorf("registering counter: %w", err)
	}
	return handle, nil
}
