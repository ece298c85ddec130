package nzsl

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/glsl"
)

func countingCache(compiles *atomic.Int32) *ArtifactCache {
	c := NewArtifactCache(nil)
	c.compile = func(source string, opts CompileOptions) (*Artifact, error) {
		compiles.Add(1)
		return Compile(source, opts)
	}
	return c
}

func TestArtifactCacheHit(t *testing.T) {
	var compiles atomic.Int32
	c := countingCache(&compiles)

	first, err := c.Compile("Test", testShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := c.Compile("Test", testShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if first != second {
		t.Error("second request did not return the cached artifact")
	}
	if n := compiles.Load(); n != 1 {
		t.Errorf("compilations = %d, want 1", n)
	}
	if got, want := c.Stats(), (CacheStats{Entries: 1, Hits: 1, Misses: 1}); got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestArtifactCacheKeys(t *testing.T) {
	base := DefaultOptions()

	withOption := func(value bool) CompileOptions {
		opts := DefaultOptions()
		opts.OptionValues = ast.OptionValues{}
		opts.OptionValues.Set("UseTint", ast.BoolValue(value))
		return opts
	}
	glslOpts := DefaultOptions()
	glslOpts.Target = TargetGLSL
	glslES := glslOpts
	glslES.GLSL.Version = glsl.VersionES300
	fragment := DefaultOptions()
	fragment.Stages = []ast.ShaderStage{ast.StageFragment}
	debug := DefaultOptions()
	debug.SPIRV.Debug = true

	tests := []struct {
		name   string
		module string
		source string
		opts   CompileOptions
	}{
		{"other name", "Other", testShader, base},
		{"other source", "Test", testShader + "\n", base},
		{"option enabled", "Test", testShader, withOption(true)},
		{"option disabled", "Test", testShader, withOption(false)},
		{"glsl target", "Test", testShader, glslOpts},
		{"glsl es", "Test", testShader, glslES},
		{"stage subset", "Test", testShader, fragment},
		{"debug names", "Test", testShader, debug},
	}

	baseKey := artifactKey("Test", testShader, base)
	seen := map[cacheKey]string{baseKey: "base"}
	for _, tt := range tests {
		key := artifactKey(tt.module, tt.source, tt.opts)
		if other, dup := seen[key]; dup {
			t.Errorf("%s has the same key as %s", tt.name, other)
		}
		seen[key] = tt.name
	}

	reordered := DefaultOptions()
	reordered.Stages = []ast.ShaderStage{ast.StageFragment, ast.StageVertex}
	inOrder := DefaultOptions()
	inOrder.Stages = []ast.ShaderStage{ast.StageVertex, ast.StageFragment}
	if artifactKey("Test", testShader, reordered) != artifactKey("Test", testShader, inOrder) {
		t.Error("stage order changed the key")
	}
	if artifactKey("Test", testShader, withOption(true)) != artifactKey("Test", testShader, withOption(true)) {
		t.Error("equal option values produced different keys")
	}
}

func TestArtifactCacheCollapsesConcurrentMisses(t *testing.T) {
	var compiles atomic.Int32
	release := make(chan struct{})
	c := NewArtifactCache(nil)
	c.compile = func(source string, opts CompileOptions) (*Artifact, error) {
		compiles.Add(1)
		<-release
		return Compile(source, opts)
	}

	const callers = 16
	results := make([]*Artifact, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := c.Compile("Test", testShader, DefaultOptions())
			if err != nil {
				t.Errorf("Compile failed: %v", err)
				return
			}
			results[i] = a
		}(i)
	}
	for c.Stats().Hits+c.Stats().Misses < callers {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if n := compiles.Load(); n != 1 {
		t.Errorf("compilations = %d, want 1", n)
	}
	for i, a := range results {
		if a != results[0] {
			t.Errorf("caller %d got a different artifact", i)
		}
	}
}

func TestArtifactCacheMissDoesNotWaitOnOtherKeys(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})

	c := NewArtifactCache(nil)
	c.compile = func(source string, opts CompileOptions) (*Artifact, error) {
		if source == helpersSource {
			close(started)
			<-block
		}
		return Compile(source, opts)
	}

	go func() {
		_, _ = c.Compile("Helpers", helpersSource, DefaultOptions())
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		_, err := c.Compile("Test", testShader, DefaultOptions())
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("miss on an unrelated key waited for another compilation")
	}
}

func TestArtifactCacheDropsFailures(t *testing.T) {
	var compiles atomic.Int32
	c := countingCache(&compiles)
	for i := 0; i < 2; i++ {
		_, err := c.Compile("Broken", "module;\nfn f(\n", DefaultOptions())
		var ce *CompileError
		if !errors.As(err, &ce) {
			t.Fatalf("error = %v, want a *CompileError", err)
		}
	}
	if n := compiles.Load(); n != 2 {
		t.Errorf("compilations = %d, want 2", n)
	}
	if n := c.Stats().Entries; n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestArtifactCacheResolver(t *testing.T) {
	resolver := NewMemoryResolver()
	resolver.Register("Helpers", helpersSource)
	c := NewArtifactCache(resolver)

	a, err := c.Compile("Main", importingShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !a.HasStage(ast.StageFragment) {
		t.Error("fragment stage was not compiled")
	}

	c.Purge()
	if n := c.Stats().Entries; n != 0 {
		t.Errorf("entries after Purge = %d, want 0", n)
	}
}

func TestArtifactCachePurgeDuringCompile(t *testing.T) {
	var compiles atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := NewArtifactCache(nil)
	c.compile = func(source string, opts CompileOptions) (*Artifact, error) {
		if compiles.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return Compile(source, opts)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Compile("Test", testShader, DefaultOptions())
		done <- err
	}()
	<-started
	c.Purge()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if n := c.Stats().Entries; n != 0 {
		t.Fatalf("entries = %d, want 0: a compilation started before Purge was stored", n)
	}

	fresh, err := c.Compile("Test", testShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	again, err := c.Compile("Test", testShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if again != fresh {
		t.Error("compilation after Purge was not stored")
	}
	if n := compiles.Load(); n != 2 {
		t.Errorf("compilations = %d, want 2", n)
	}
}

func TestArtifactCacheRecoversFromPanic(t *testing.T) {
	var compiles atomic.Int32
	c := NewArtifactCache(nil)
	c.compile = func(source string, opts CompileOptions) (*Artifact, error) {
		if compiles.Add(1) == 1 {
			panic("compiler bug")
		}
		return Compile(source, opts)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was not propagated to the caller")
			}
		}()
		_, _ = c.Compile("Test", testShader, DefaultOptions())
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.Compile("Test", testShader, DefaultOptions())
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("request after a panicking compilation never completed")
	}
}
