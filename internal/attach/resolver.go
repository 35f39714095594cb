// Package attach resolves the loosely-specified attachment references stored
// in a backup (a bare UUID, a UUID with the wrong extension, or a full
// filename) against the unordered files of a user-supplied media folder.
package attach

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Kind is the media kind inferred for rendering. It is never a substitute
// for the kind label stored on the message, which is always shown verbatim.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindUnknown  Kind = "unknown"
)

// uuidRE matches an RFC-4122-shaped substring anywhere in a name.
var uuidRE = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Resolved is a resolved attachment. It stays valid until the index it was
// issued from is cleared or replaced; Open on a stale Resolved fails.
type Resolved struct {
	Name string // filename on disk, with extension
	Path string // absolute path
	Kind Kind   // inferred media kind for rendering
	URL  string // display URL served by the attachment endpoint

	gen int
}

// Resolver indexes one media folder by derived keys: the lowercase base name
// with extension stripped, and any UUID embedded in the name. Replacing the
// folder tears down the whole index; it is never mutated incrementally.
type Resolver struct {
	mu     sync.RWMutex
	dir    string
	byBase map[string]string // lowercase base name -> filename
	byUUID map[string]string // lowercase uuid -> filename
	names  []string          // directory order, for fuzzy lookup
	gen    int
}

// NewResolver returns an empty resolver. Call LoadDir before resolving.
func NewResolver() *Resolver {
	return &Resolver{
		byBase: map[string]string{},
		byUUID: map[string]string{},
	}
}

// LoadDir replaces the index with the contents of dir. Every Resolved issued
// before this call becomes stale. Subdirectories are skipped.
func (r *Resolver) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read media folder: %w", err)
	}

	byBase := make(map[string]string, len(entries))
	byUUID := make(map[string]string, len(entries))
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		names = append(names, name)
		byBase[strings.ToLower(stripExt(name))] = name
		if id, ok := extractUUID(name); ok {
			byUUID[id] = name
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
	r.byBase = byBase
	r.byUUID = byUUID
	r.names = names
	r.gen++
	return nil
}

// Clear drops the index and invalidates all issued handles.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = ""
	r.byBase = map[string]string{}
	r.byUUID = map[string]string{}
	r.names = nil
	r.gen++
}

// Count returns the number of indexed files.
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Resolve maps a stored attachment reference to an indexed file. A UUID
// embedded in the reference takes precedence over the base-name mapping, so
// a bare-UUID reference finds its file even when an unrelated file happens
// to claim the same base name. Resolution is idempotent: the same reference
// maps to the same file until the index is rebuilt.
//
// A miss is not an error; the caller renders a placeholder carrying the
// stored kind label.
func (r *Resolver) Resolve(ref string) (*Resolved, bool) {
	if ref == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	base := strings.ToLower(stripExt(ref))
	var name string
	if id, ok := extractUUID(base); ok {
		name = r.byUUID[id]
	}
	if name == "" {
		name = r.byBase[base]
	}
	if name == "" {
		return nil, false
	}

	path := filepath.Join(r.dir, name)
	return &Resolved{
		Name: name,
		Path: path,
		Kind: inferKind(path),
		URL:  "/api/v1/attachments/" + ref,
		gen:  r.gen,
	}, true
}

// FuzzyFind locates a file for the HTTP attachment endpoint: an exact
// filename match first, then the first indexed name containing the reference
// or its extension-stripped base.
func (r *Resolver) FuzzyFind(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.names {
		if name == ref {
			return filepath.Join(r.dir, name), true
		}
	}

	base := stripExt(ref)
	for _, name := range r.names {
		if strings.Contains(name, ref) || strings.Contains(name, base) {
			return filepath.Join(r.dir, name), true
		}
	}
	return "", false
}

// Open opens the resolved file for streaming. It fails once the index has
// been cleared or replaced, so stale handles never outlive a folder change.
func (r *Resolver) Open(res *Resolved) (*os.File, error) {
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()
	if res.gen != gen {
		return nil, fmt.Errorf("attachment handle is stale: media folder was replaced")
	}
	return os.Open(res.Path)
}

// stripExt removes the final extension, if any.
func stripExt(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}

// extractUUID finds an RFC-4122-shaped substring by pattern match (never by
// position) and validates it. Returns the lowercase UUID.
func extractUUID(name string) (string, bool) {
	m := uuidRE.FindString(name)
	if m == "" {
		return "", false
	}
	if _, err := uuid.Parse(m); err != nil {
		return "", false
	}
	return strings.ToLower(m), true
}

// extKinds maps file extensions to media kinds when content sniffing is
// inconclusive.
var extKinds = map[string]Kind{
	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage,
	".webp": KindImage, ".gif": KindImage,
	".mp4": KindVideo, ".mov": KindVideo, ".mkv": KindVideo, ".webm": KindVideo,
	".mp3": KindAudio, ".wav": KindAudio, ".ogg": KindAudio,
	".m4a": KindAudio, ".opus": KindAudio,
	".pdf": KindDocument,
}

// inferKind derives the media kind from the file's actual content type,
// falling back to extension heuristics when sniffing is unavailable or
// inconclusive.
func inferKind(path string) Kind {
	if k, ok := sniffKind(path); ok {
		return k
	}
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return KindUnknown
}

// sniffKind reads the first 512 bytes and classifies the detected content
// type. Returns false for octet-stream and read failures so the extension
// fallback gets a chance.
func sniffKind(path string) (Kind, bool) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if n == 0 || (err != nil && n <= 0) {
		return KindUnknown, false
	}

	ct := http.DetectContentType(buf[:n])
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage, true
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio, true
	case strings.Contains(ct, "pdf"):
		return KindDocument, true
	default:
		return KindUnknown, false
	}
}
