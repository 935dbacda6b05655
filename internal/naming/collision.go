package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Resolver hands out output paths so that no two inputs in one run write the
// same file (e.g. "song.mp3" and "song.wma" both want "song_432.mp3").
// Paths are compared case-insensitively because the output tree may live on
// a case-insensitive filesystem. All methods are goroutine-safe.
type Resolver struct {
	mu     sync.Mutex
	owners map[string]string // folded output path -> input path that owns it
}

// NewResolver creates a ready-to-use resolver.
func NewResolver() *Resolver {
	return &Resolver{owners: make(map[string]string)}
}

// Claim returns want when it is free or already owned by input; otherwise
// the first free "<stem> (N)<ext>" variant, N starting at 2.
func (r *Resolver) Claim(input, want string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.take(input, want) {
		return want
	}

	dir, base := filepath.Split(want)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 2; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if r.take(input, candidate) {
			return candidate
		}
	}
}

func (r *Resolver) take(input, path string) bool {
	key := strings.ToLower(path)
	owner, taken := r.owners[key]
	if taken && owner != input {
		return false
	}
	r.owners[key] = input
	return true
}

// Reset forgets every claim. The walker calls it at the start of each pass
// so a restarted walk assigns the same names again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.owners)
}
