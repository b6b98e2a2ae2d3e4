package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/jsvalue"
	"github.com/shinji-kodama/unrun/internal/model"
)

func namespaceWith(key string, v jsvalue.Value) *jsvalue.Namespace {
	ns := jsvalue.NewNamespace()
	ns.Exports.Set(key, v)
	return ns
}

// TestLoadSync verifies a namespace arrives as a plain ordered object.
func TestLoadSync(t *testing.T) {
	b := New(func(_ context.Context, opts config.Options) (*model.Result, error) {
		inner := jsvalue.NewObject()
		inner.Set("z", 1.0)
		inner.Set("a", []jsvalue.Value{"x", jsvalue.Undefined{}})
		ns := namespaceWith("value", inner)
		return &model.Result{Module: ns, Dependencies: []string{opts.Path}}, nil
	})
	defer b.Close()

	res, err := b.LoadSync(config.Options{Path: "/p/a.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.ts"}, res.Dependencies)

	obj, ok := res.Module.(*jsvalue.Object)
	require.True(t, ok)
	v, _ := obj.Get("value")
	inner := v.(*jsvalue.Object)
	assert.Equal(t, "z", inner.Oldest().Key)
	a, _ := inner.Get("a")
	assert.Equal(t, []jsvalue.Value{"x", nil}, a)
}

// TestLoadSyncRejectsFunctions verifies function values are refused.
func TestLoadSyncRejectsFunctions(t *testing.T) {
	b := New(func(context.Context, config.Options) (*model.Result, error) {
		return &model.Result{Module: namespaceWith("handler", jsvalue.Function{Name: "handler"})}, nil
	})
	defer b.Close()

	_, err := b.LoadSync(config.Options{})
	require.Error(t, err)
	assert.Equal(t, "[unrun] LoadSync cannot return functions", err.Error())
}

// TestLoadSyncError verifies pipeline errors keep their message.
func TestLoadSyncError(t *testing.T) {
	b := New(func(context.Context, config.Options) (*model.Result, error) {
		return nil, model.NewConfigError("path: file not found: %s", "/missing.ts")
	})
	defer b.Close()

	_, err := b.LoadSync(config.Options{})
	require.Error(t, err)
	assert.Equal(t, "[unrun] path: file not found: /missing.ts", err.Error())
}

// TestLoadSyncSerializes verifies only one call runs at a time.
func TestLoadSyncSerializes(t *testing.T) {
	var running, peak atomic.Int32
	b := New(func(context.Context, config.Options) (*model.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return &model.Result{Module: 1.0}, nil
	})
	defer b.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.LoadSync(config.Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

// TestClose verifies calls after Close fail and Close is idempotent.
func TestClose(t *testing.T) {
	b := New(func(context.Context, config.Options) (*model.Result, error) {
		return &model.Result{Module: 1.0}, nil
	})
	_, err := b.LoadSync(config.Options{})
	require.NoError(t, err)

	b.Close()
	b.Close()
	_, err = b.LoadSync(config.Options{})
	assert.True(t, errors.Is(err, ErrClosed))
}
