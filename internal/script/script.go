// Package script embeds a JavaScript runtime that can observe and steer a
// session: a script registered against a session runs before each syscall
// dispatch and whenever the session's Stop is called, with read/write
// access to registers and memory. onStop receives the exit code as its
// argument but cannot change it.
package script

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
)

// Host is the subset of session.Session a script is allowed to touch,
// expressed as an interface so this package never imports internal/session
// (which would create an import cycle back through internal/ntapi).
type Host interface {
	ReadGuestPtr(addr uint64) (uint64, error)
	WriteGuestPtr(addr uint64, v uint64) error
	ReadMemory(addr, n uint64) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error
	GetReg(name string) (uint64, error)
	SetReg(name string, v uint64) error
}

// Runtime wraps a goja VM preloaded with bindings against a Host.
type Runtime struct {
	vm       *goja.Runtime
	onSys    goja.Callable
	onStop   goja.Callable
	hasOnSys bool
	hasStop  bool
}

// Load reads and evaluates the script at path, binding it against host.
// A script that defines an onSyscall(name) function is invoked before
// every syscall dispatch; one that defines onStop(exitCode) is invoked
// when the session's Stop is called. Stops caused by a fault or an
// unimplemented syscall do not invoke it.
func Load(path string, host Host) (*Runtime, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	vm := goja.New()
	bindHost(vm, host)

	if _, err := vm.RunScript(path, string(src)); err != nil {
		return nil, fmt.Errorf("evaluate script %s: %w", path, err)
	}

	r := &Runtime{vm: vm}
	if fn, ok := goja.AssertFunction(vm.Get("onSyscall")); ok {
		r.onSys, r.hasOnSys = fn, true
	}
	if fn, ok := goja.AssertFunction(vm.Get("onStop")); ok {
		r.onStop, r.hasStop = fn, true
	}
	return r, nil
}

func bindHost(vm *goja.Runtime, host Host) {
	api := vm.NewObject()
	must := func(name string, fn interface{}) {
		if err := api.Set(name, fn); err != nil {
			panic(fmt.Sprintf("bind %s: %v", name, err))
		}
	}
	must("readPtr", func(addr int64) int64 {
		v, _ := host.ReadGuestPtr(uint64(addr))
		return int64(v)
	})
	must("writePtr", func(addr, v int64) {
		_ = host.WriteGuestPtr(uint64(addr), uint64(v))
	})
	must("readBytes", func(addr, n int64) []byte {
		data, _ := host.ReadMemory(uint64(addr), uint64(n))
		return data
	})
	must("writeBytes", func(addr int64, data []byte) {
		_ = host.WriteMemory(uint64(addr), data)
	})
	must("getReg", func(name string) int64 {
		v, _ := host.GetReg(name)
		return int64(v)
	})
	must("setReg", func(name string, v int64) {
		_ = host.SetReg(name, uint64(v))
	})
	_ = vm.Set("dumpulator", api)
}

// OnSyscall runs the script's onSyscall hook, if defined.
func (r *Runtime) OnSyscall(name string) error {
	if !r.hasOnSys {
		return nil
	}
	_, err := r.onSys(goja.Undefined(), r.vm.ToValue(name))
	return err
}

// OnStop runs the script's onStop hook, if defined.
func (r *Runtime) OnStop(exitCode *int64) error {
	if !r.hasStop {
		return nil
	}
	var arg goja.Value
	if exitCode == nil {
		arg = goja.Null()
	} else {
		arg = r.vm.ToValue(*exitCode)
	}
	_, err := r.onStop(goja.Undefined(), arg)
	return err
}
