package main

import (
	"fmt"
	"os"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/config"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/core"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/handler"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/hpc"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realm"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realms/smartseq3"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realms/tenx"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/registry"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/watch"
)

// wireConfig is the top-level JSON configuration Yggdrasil loads by
// logical name "yggdrasil" (ConfigStore : dev_yggdrasil.json
// overlays it in dev mode). Scheduler and etcd credentials may be
// overridden by environment variables.
type wireConfig struct {
	Etcd struct {
		Endpoints []string `json:"endpoints"`
		Username  string   `json:"username"`
		Password  string   `json:"password"`
	} `json:"etcd"`

	ProjectsPrefix   string `json:"projects_prefix"`
	YggdrasilPrefix  string `json:"yggdrasil_prefix"`
	CursorFile       string `json:"cursor_file"`
	ChangeFeedPollS  int    `json:"change_feed_poll_seconds"`

	ScriptDir string `json:"script_dir"`

	HPC hpcJSONConfig `json:"hpc"`

	Instruments []instrumentConfig     `json:"instruments"`
	Realms      map[string]realmConfig `json:"realms"`
}

type hpcJSONConfig struct {
	SubmitCommand   []string `json:"submit_command"`
	StatusCommand   []string `json:"status_command"`
	CommandTimeoutS int      `json:"command_timeout_seconds"`
	PollIntervalS   int      `json:"poll_interval_seconds"`
}

type instrumentConfig struct {
	Name        string   `json:"name"`
	Directory   string   `json:"directory"`
	MarkerFiles []string `json:"marker_files"`
}

// realmConfig maps a registry module id to the concrete realm kind
// that implements it and the library-construction-method keys that
// resolve to it.
type realmConfig struct {
	Kind    string         `json:"kind"` // "smartseq3" | "tenx"
	Methods map[string]bool `json:"methods"` // method -> prefix?
}

func loadWireConfig(devMode bool, configDir string) (*wireConfig, error) {
	store := config.New(configDir, devMode)
	var cfg wireConfig
	if err := store.Load("yggdrasil", &cfg); err != nil {
		return nil, fmt.Errorf("loading yggdrasil config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *wireConfig) {
	if v := os.Getenv("YGGDRASIL_ETCD_ENDPOINTS"); v != "" {
		cfg.Etcd.Endpoints = []string{v}
	}
	if v := os.Getenv("YGGDRASIL_ETCD_USER"); v != "" {
		cfg.Etcd.Username = v
	}
	if v := os.Getenv("YGGDRASIL_ETCD_PASSWORD"); v != "" {
		cfg.Etcd.Password = v
	}
	if v := os.Getenv("YGGDRASIL_SCHEDULER_USER"); v != "" {
		// The scheduler commands are opaque; a configured submit
		// user is threaded through as an environment variable to the
		// shelled-out command rather than as an argument.
		os.Setenv("SCHEDULER_USER", v)
	}
}

// wired bundles the constructed components a running process needs,
// so daemon and run-doc share the same assembly path.
type wired struct {
	Core         *core.Core
	ProjectStore *store.ProjectStore
	YggStore     *store.YggdrasilStore
	Registry     *registry.Registry
	etcdClient   *clientv3.Client
}

func (w *wired) Close() {
	if w.etcdClient != nil {
		w.etcdClient.Close()
	}
}

// wireUp constructs every component from cfg and registers the
// built-in ProjectChange handler and watchers onto a fresh Core
//.
func wireUp(cfg *wireConfig, devMode bool) (*wired, error) {
	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints: cfg.Etcd.Endpoints,
		Username:  cfg.Etcd.Username,
		Password:  cfg.Etcd.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing etcd: %w", err)
	}

	kv := store.NewEtcdKV(etcdClient)
	cursor := store.NewCursorFile(cfg.CursorFile)
	projectStore := store.NewProjectStore(kv, cfg.ProjectsPrefix, cursor)
	yggStore := store.NewYggdrasilStore(kv, cfg.YggdrasilPrefix)

	reg := buildRegistry(cfg.Realms)

	var hpcMonitor realm.HPCMonitor
	var submitter realm.Submitter
	if devMode {
		mock := hpc.NewMock()
		hpcMonitor, submitter = mock, mock
	} else {
		real := hpc.New(hpcConfigFrom(cfg.HPC))
		hpcMonitor, submitter = real, real
	}

	factories := buildRealmFactories(cfg, yggStore, hpcMonitor, submitter)

	c := core.New(projectStore, reg)
	c.RegisterHandler(event.ProjectChange, handler.NewProjectChangeHandler(factories))

	pollInterval := secondsOrDefault(cfg.ChangeFeedPollS, 30)
	c.AddWatcher(watch.NewChangeFeedWatcher(projectStore, reg, pollInterval))

	for _, inst := range cfg.Instruments {
		markers := make(map[string]bool, len(inst.MarkerFiles))
		for _, m := range inst.MarkerFiles {
			markers[m] = true
		}
		c.AddWatcher(watch.NewFilesystemWatcher(watch.FilesystemConfig{
			InstrumentName: inst.Name,
			Directory:      inst.Directory,
			MarkerFiles:    markers,
		}))
	}

	return &wired{
		Core:         c,
		ProjectStore: projectStore,
		YggStore:     yggStore,
		Registry:     reg,
		etcdClient:   etcdClient,
	}, nil
}

func buildRegistry(realms map[string]realmConfig) *registry.Registry {
	entries := make(map[string]registry.Entry)
	for module, rc := range realms {
		for method, isPrefix := range rc.Methods {
			entries[method] = registry.Entry{Module: module, Prefix: isPrefix}
		}
	}
	return registry.New(entries)
}

func hpcConfigFrom(h hpcJSONConfig) hpc.Config {
	return hpc.Config{
		SubmitCommand:  h.SubmitCommand,
		StatusCommand:  h.StatusCommand,
		CommandTimeout: secondsOrDefault(h.CommandTimeoutS, 8),
		PollInterval:   secondsOrDefault(h.PollIntervalS, 30),
	}
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func buildRealmFactories(
	cfg *wireConfig,
	yggStore *store.YggdrasilStore,
	hpcMonitor realm.HPCMonitor,
	submitter realm.Submitter,
) map[string]handler.RealmFactory {
	factories := make(map[string]handler.RealmFactory, len(cfg.Realms))
	for module, rc := range cfg.Realms {
		rc := rc
		switch rc.Kind {
		case "smartseq3":
			factories[module] = func(doc *store.ProjectDocument) realm.Realm {
				return smartseq3.New(doc, yggStore, hpcMonitor, submitter, cfg.ScriptDir)
			}
		case "tenx":
			factories[module] = func(doc *store.ProjectDocument) realm.Realm {
				return tenx.New(doc, yggStore, hpcMonitor, submitter, cfg.ScriptDir)
			}
		}
	}
	return factories
}
