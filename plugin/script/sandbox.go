// Package script runs operator-supplied JavaScript event filters in a
// pool of restricted goja VMs.
package script

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a script exceeds the execution time limit.
var ErrTimeout = errors.New("script: execution timed out")

// ErrPanic is returned when the runtime panics while executing a script.
var ErrPanic = errors.New("script: runtime panic")

// VMPool is a thread-safe pool of pre-initialised goja runtimes.
type VMPool struct {
	pool    chan *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
}

// NewVMPool creates a VMPool with the given concurrency size and per-script timeout.
func NewVMPool(size int, timeout time.Duration, logger *zap.Logger) *VMPool {
	if size <= 0 {
		size = 2
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &VMPool{
		pool:    make(chan *goja.Runtime, size),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.pool <- p.newSafeVM()
	}
	return p
}

// Run executes src inside a pooled VM with globals bound for the duration
// of the call. It returns the exported value of the last expression.
func (p *VMPool) Run(ctx context.Context, src string, globals map[string]any) (any, error) {
	select {
	case vm := <-p.pool:
		// keep is cleared when the VM is tainted by a timeout and must be
		// replaced rather than returned.
		keep := true
		defer func() {
			if keep {
				p.pool <- vm
			}
		}()
		return p.runVM(vm, src, globals, &keep)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *VMPool) runVM(vm *goja.Runtime, src string, globals map[string]any, keep *bool) (any, error) {
	for name, v := range globals {
		_ = vm.Set(name, v)
	}
	timer := time.AfterFunc(p.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer func() {
		timer.Stop()
		if *keep {
			vm.ClearInterrupt()
			for name := range globals {
				_ = vm.Set(name, goja.Undefined())
			}
		}
	}()

	var result goja.Value
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = ErrPanic
			}
		}()
		result, runErr = vm.RunString(src)
	}()

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			*keep = false
			p.pool <- p.newSafeVM()
			return nil, ErrTimeout
		}
		var ex *goja.Exception
		if errors.As(runErr, &ex) {
			return nil, errors.New(ex.Error())
		}
		return nil, runErr
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// newSafeVM creates a runtime with dangerous globals removed and a
// deterministic Math.
func (p *VMPool) newSafeVM() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	for _, name := range []string{"require", "process", "fetch", "XMLHttpRequest", "eval", "Function"} {
		_ = vm.Set(name, goja.Undefined())
	}
	mathObj := vm.NewObject()
	_ = mathObj.Set("floor", math.Floor)
	_ = mathObj.Set("ceil", math.Ceil)
	_ = mathObj.Set("round", math.Round)
	_ = mathObj.Set("abs", math.Abs)
	_ = mathObj.Set("sqrt", math.Sqrt)
	_ = mathObj.Set("max", math.Max)
	_ = mathObj.Set("min", math.Min)
	_ = mathObj.Set("random", func() float64 { return 0 })
	_ = vm.Set("Math", mathObj)
	_ = vm.Set("log", func(msg string) { p.logger.Info("script log", zap.String("msg", msg)) })
	return vm
}

// Sandbox wraps a VMPool and logs failed evaluations.
type Sandbox struct {
	pool   *VMPool
	logger *zap.Logger
}

// NewSandbox creates a Sandbox backed by a VMPool.
func NewSandbox(size int, timeout time.Duration, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{
		pool:   NewVMPool(size, timeout, logger),
		logger: logger,
	}
}

// Eval executes src with globals bound, returning the result.
func (sb *Sandbox) Eval(ctx context.Context, src string, globals map[string]any) (any, error) {
	result, err := sb.pool.Run(ctx, src, globals)
	if err != nil {
		sb.logger.Warn("script execution error",
			zap.String("src_preview", truncate(src, 80)),
			zap.Error(err))
	}
	return result, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
