package nzsl

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/glsl"
	"github.com/gogpu/nzsl/sanitize"
)

// ArtifactCache memoizes compilations. Entries are keyed by a digest of the
// module name, its source and every option that affects the output, so a
// changed source or specialization is a different entry.
//
// ArtifactCache is safe for concurrent use. Concurrent requests for the same
// key compile once and share the result, and a miss never waits on a
// compilation of another key. Failed compilations are not kept.
//
// Imported modules are not part of the key: call Purge after changing a
// module the resolver serves.
type ArtifactCache struct {
	resolver sanitize.ModuleResolver
	group    singleflight.Group

	mu      sync.Mutex
	entries map[cacheKey]*Artifact
	// generation is bumped by Purge so that compilations started before it
	// are not stored.
	generation uint64
	hits       uint64
	misses     uint64

	// compile is replaced in tests to count compilations.
	compile func(source string, opts CompileOptions) (*Artifact, error)
}

type cacheKey [sha256.Size]byte

// CacheStats reports cache activity.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// NewArtifactCache returns an empty cache. Imports of compiled modules are
// resolved with resolver, which may be nil for modules without imports.
func NewArtifactCache(resolver sanitize.ModuleResolver) *ArtifactCache {
	return &ArtifactCache{
		resolver: resolver,
		entries:  make(map[cacheKey]*Artifact),
		compile:  Compile,
	}
}

// Compile returns the artifact of source compiled with opts, compiling it on
// a miss. The resolver of opts is replaced by the cache's resolver.
func (c *ArtifactCache) Compile(name, source string, opts CompileOptions) (*Artifact, error) {
	opts.Resolver = c.resolver
	key := artifactKey(name, source, opts)

	c.mu.Lock()
	if artifact, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return artifact, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(string(key[:]), func() (any, error) {
		c.mu.Lock()
		if artifact, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return artifact, nil
		}
		generation := c.generation
		c.mu.Unlock()

		artifact, err := c.compile(source, opts)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == generation {
			c.entries[key] = artifact
		}
		c.mu.Unlock()
		return artifact, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

// Stats returns the number of entries and the hit and miss counts.
func (c *ArtifactCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Purge drops every entry. Compilations in flight still complete for their
// callers but are not stored.
func (c *ArtifactCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*Artifact)
	c.generation++
}

// keyWriter feeds length-prefixed fields to a digest so that adjacent fields
// cannot run into each other.
type keyWriter struct {
	h   hash.Hash
	buf []byte
}

func (w *keyWriter) putUint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf[:0], v)
	w.h.Write(w.buf)
}

func (w *keyWriter) putBool(v bool) {
	if v {
		w.putUint(1)
	} else {
		w.putUint(0)
	}
}

func (w *keyWriter) putString(s string) {
	w.putUint(uint64(len(s)))
	w.h.Write([]byte(s))
}

func artifactKey(name, source string, opts CompileOptions) cacheKey {
	w := &keyWriter{h: sha256.New()}
	w.putString(name)
	w.putString(source)
	w.putUint(uint64(opts.Target))

	var stages ast.StageFlags
	for _, s := range opts.Stages {
		stages |= ast.StageFlag(s)
	}
	w.putUint(uint64(stages))

	hashes := make([]uint32, 0, len(opts.OptionValues))
	for h := range opts.OptionValues {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	w.putUint(uint64(len(hashes)))
	for _, h := range hashes {
		w.putUint(uint64(h))
		if v := opts.OptionValues[h]; v != nil {
			w.putString(v.Type().String())
			w.putString(v.String())
		}
	}

	w.putBool(opts.Sanitize.SplitMultipleBranches)
	w.putBool(opts.Sanitize.ReduceLoopsToWhile)
	w.putBool(opts.Sanitize.RemoveMatrixCast)

	switch opts.Target {
	case TargetSPIRV:
		w.putUint(uint64(opts.SPIRV.Version.Major))
		w.putUint(uint64(opts.SPIRV.Version.Minor))
		w.putBool(opts.SPIRV.Debug)
		w.putUint(uint64(len(opts.SPIRV.Capabilities)))
		for _, c := range opts.SPIRV.Capabilities {
			w.putUint(uint64(c))
		}
	case TargetGLSL:
		env := opts.GLSL
		w.putUint(uint64(env.Version.Major))
		w.putUint(uint64(env.Version.Minor))
		w.putBool(env.Version.ES)
		w.putBool(env.ES)
		w.putString(env.EntryPoint)
		w.putBool(env.FlipYPosition)
		w.putBool(env.RemapZPosition)
		bindings := make([]glsl.Binding, 0, len(env.BindingMapping))
		for b := range env.BindingMapping {
			bindings = append(bindings, b)
		}
		sort.Slice(bindings, func(i, j int) bool {
			if bindings[i].Set != bindings[j].Set {
				return bindings[i].Set < bindings[j].Set
			}
			return bindings[i].Binding < bindings[j].Binding
		})
		w.putUint(uint64(len(bindings)))
		for _, b := range bindings {
			w.putUint(uint64(b.Set))
			w.putUint(uint64(b.Binding))
			w.putUint(uint64(env.BindingMapping[b]))
		}
	}

	var key cacheKey
	w.h.Sum(key[:0])
	return key
}
