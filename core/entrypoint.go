package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/aramidnet/aramid/kv"
	"github.com/aramidnet/aramid/perf"
	"github.com/aramidnet/aramid/state"
	"github.com/aramidnet/aramid/store"
	"github.com/aramidnet/aramid/sys"
	"github.com/benbjohnson/clock"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

func buildLogger(ncfg *state.LocalCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(ncfg.Id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start wires the external collaborators and runs the main loop until a
// shutdown signal or a fatal error.
func Start(ccfg state.CentralCfg, ncfg state.LocalCfg, logLevel slog.Level) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(context.Canceled)

	ccfg.ApplyDefaults()
	ncfg.ApplyDefaults()

	logger, err := buildLogger(&ncfg, logLevel)
	if err != nil {
		return err
	}

	if ncfg.StateDir == "" {
		ncfg.StateDir = "/var/lib/aramid"
	}
	configStore, err := store.NewFileStore(ncfg.StateDir)
	if err != nil {
		return err
	}

	clk := clock.New()
	kvStore := kv.NewStore(ccfg.KvKeyTTL)
	defer kvStore.Stop()
	kvClient := kv.NewClient(kvStore, ncfg.Id, ccfg.KvKeyTTL, clk)

	dispatch := make(chan func(env *state.State) error, state.QueueDepth)

	nlWatcher := &sys.NetlinkWatcher{}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:          ctx,
			Cancel:           cancel,
			DispatchChannel:  dispatch,
			CentralCfg:       ccfg,
			LocalCfg:         ncfg,
			Log:              logger,
			Clock:            clk,
			Kv:               kvClient,
			ConfigStore:      configStore,
			Links:            nlWatcher,
			NeighborUpdates:  make(chan state.NeighborEvent, state.QueueDepth),
			NetlinkUpdates:   make(chan state.NetlinkEvent, state.QueueDepth),
			InterfaceUpdates: make(chan state.InterfaceDatabase, state.QueueDepth),
			PrefixUpdates:    make(chan state.PrefixUpdateRequest, state.QueueDepth),
			PeerUpdates:      make(chan state.PeerUpdateRequest, state.QueueDepth),
			LogSamples:       make(chan state.LogSample, state.QueueDepth),
		},
	}

	if err := nlWatcher.Watch(ctx, s.NetlinkUpdates); err != nil {
		return err
	}

	s.Log.Info("init modules")
	if err := initModules(&s); err != nil {
		return err
	}
	s.Log.Info("init modules complete")

	// the prober, decision, and fib modules consume these queues in a full
	// deployment; here they are drained into the debug log
	go drainQueues(s.Env)

	s.Log.Info("aramid has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.Module
	modules = append(modules, &LinkMonitor{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func drainQueues(e *state.Env) {
	for {
		select {
		case db := <-e.InterfaceUpdates:
			e.Log.Debug("interface database", "interfaces", len(db.Interfaces))
		case req := <-e.PrefixUpdates:
			e.Log.Debug("prefix update", "cmd", req.Cmd, "prefixes", req.Prefixes)
		case req := <-e.PeerUpdates:
			e.Log.Debug("peer update", "area", req.Area, "add", len(req.AddOrUpdate), "del", len(req.Del))
		case sample := <-e.LogSamples:
			e.Log.Debug("event", "id", sample.Id, "event", sample.Event, "fields", sample.Fields)
		case <-e.Context.Done():
			return
		}
	}
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnThreshold {
				s.Log.Warn("dispatch took a long time!",
					"fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(),
					"elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
