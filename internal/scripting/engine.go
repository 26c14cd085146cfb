package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the tuning scripts.
// Single-goroutine access only (simulation loop); Watch is the one method
// meant for another goroutine and it never touches the VM.
type Engine struct {
	dir   string
	vm    *lua.LState
	log   *zap.Logger
	files int
}

// NewEngine creates a Lua engine and loads every .lua file in dir. A missing
// directory is not an error: every hook then uses its Go fallback.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{dir: dir, log: log}
	vm, files, err := e.load()
	if err != nil {
		return nil, err
	}
	e.vm, e.files = vm, files
	return e, nil
}

func (e *Engine) load() (*lua.LState, int, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return vm, 0, nil
		}
		vm.Close()
		return nil, 0, fmt.Errorf("read scripts %s: %w", e.dir, err)
	}
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			vm.Close()
			return nil, 0, fmt.Errorf("load %s: %w", path, err)
		}
		files++
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return vm, files, nil
}

// Reload rebuilds the VM from disk. On failure the previous VM stays in
// place and keeps serving calls.
func (e *Engine) Reload() error {
	vm, files, err := e.load()
	if err != nil {
		return err
	}
	e.vm.Close()
	e.vm, e.files = vm, files
	e.log.Info("lua scripts reloaded", zap.Int("files", files))
	return nil
}

func (e *Engine) Dir() string { return e.dir }
func (e *Engine) Files() int  { return e.files }

// ScaleEase maps tween progress t in [0,1] through the Lua scale_ease
// function. Without one, or when it fails, the ease is linear. The result
// is clamped to [0,1].
func (e *Engine) ScaleEase(t float32) float32 {
	t = clamp01(t)
	fn := e.vm.GetGlobal("scale_ease")
	if fn == lua.LNil {
		return t
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(t)); err != nil {
		e.log.Error("lua scale_ease error", zap.Error(err))
		return t
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		return t
	}
	return clamp01(float32(n))
}

// PhysicsOverrides calls Lua physics_preset(kind) and returns the numeric
// fields of the table it returns. Nil means no overrides.
func (e *Engine) PhysicsOverrides(kind string) map[string]float32 {
	fn := e.vm.GetGlobal("physics_preset")
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(kind)); err != nil {
		e.log.Error("lua physics_preset error", zap.String("kind", kind), zap.Error(err))
		return nil
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]float32)
	rt.ForEach(func(k, v lua.LValue) {
		key, kok := k.(lua.LString)
		num, nok := v.(lua.LNumber)
		if kok && nok {
			out[string(key)] = float32(num)
		}
	})
	return out
}

// Watch sends on reload whenever a .lua file in the script directory
// changes, until ctx is done. Sends never block: a pending signal already
// covers later changes.
func (e *Engine) Watch(ctx context.Context, reload chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create script watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(e.dir); err != nil {
		return fmt.Errorf("watch %s: %w", e.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".lua" || ev.Op == fsnotify.Chmod {
				continue
			}
			e.log.Debug("script changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			select {
			case reload <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("script watcher error", zap.Error(err))
		}
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
