package config_test

import (
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/artpar/modelkit/config"
	"github.com/rs/zerolog"
)

const baseConfig = `
schemas:
  dir: "./schemas"
logging:
  level: info
`

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if h.Get().Logging.Level != "info" {
		t.Errorf("initial level = %s, want info", h.Get().Logging.Level)
	}

	var mu sync.Mutex
	var received *config.Config
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	if h.Get().Logging.Level != "debug" {
		t.Errorf("reloaded level = %s, want debug", h.Get().Logging.Level)
	}
	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.Logging.Level != "debug" {
		t.Errorf("OnChange received %+v, want debug level", received)
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}

	if h.Get().Schemas.Dir != "./schemas" {
		t.Errorf("should keep old config, got Schemas.Dir = %s", h.Get().Schemas.Dir)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 10)
	h.OnChange(func(*config.Config) { changed <- struct{}{} })

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	if err := os.WriteFile(path, []byte("schemas:\n  dir: ./other\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	if h.Get().Schemas.Dir != "./other" {
		t.Errorf("after file watch, Schemas.Dir = %s, want ./other", h.Get().Schemas.Dir)
	}
}

func TestHolder_WatchFileCoalescesBurst(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var reloads atomic.Int32
	h.OnChange(func(*config.Config) { reloads.Add(1) })

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	for _, dir := range []string{"./a", "./b", "./c"} {
		if err := os.WriteFile(path, []byte("schemas:\n  dir: "+dir+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Get().Schemas.Dir != "./c" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Get().Schemas.Dir != "./c" {
		t.Fatalf("Schemas.Dir = %s, want ./c", h.Get().Schemas.Dir)
	}
	if n := reloads.Load(); n >= 3 {
		t.Errorf("reloads = %d, want the burst coalesced", n)
	}
}

func TestHolder_WatchSignals(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 1)
	h.OnChange(func(*config.Config) { changed <- struct{}{} })
	h.WatchSignals()

	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("SIGHUP did not trigger reload")
	}
	if h.Get().Logging.Level != "warn" {
		t.Errorf("after SIGHUP, level = %s, want warn", h.Get().Logging.Level)
	}
}

func TestHolder_Static(t *testing.T) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	h := config.NewStaticHolder(cfg, zerolog.Nop())
	defer h.Stop()
	defer h.Stop()

	if h.Path() != "" {
		t.Errorf("Path() = %q, want empty", h.Path())
	}
	if err := h.Reload(); err != nil {
		t.Errorf("Reload() = %v, want nil", err)
	}
	if err := h.WatchFile(); err != nil {
		t.Errorf("WatchFile() = %v, want nil", err)
	}
	if h.Get() != cfg {
		t.Error("Get() should return the wrapped config")
	}
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, baseConfig)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}

	wg.Wait()
}
