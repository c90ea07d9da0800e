// Package clipboard implements ClipboardRegistry (spec §4.5): per-
// clipboard owner/sequence/cached-bytes tracking and the grab/update
// propagation rules that keep every connected screen's clipboard view
// converging without the registry itself touching any platform
// clipboard API — that's the out-of-scope content-converter
// collaborator, reached only through the Sink and PrimaryReader
// interfaces below.
package clipboard

import (
	"bytes"
	"sync"

	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/protocol"
)

var log = logging.L("clipboard")

// Sink is the subset of ClientProxy/PrimaryClient the registry needs
// to propagate ownership and content changes.
type Sink interface {
	Name() string
	GrabClipboard(id protocol.ClipboardID) error
	SetClipboardDirty(id protocol.ClipboardID, dirty bool) error
	SetClipboard(id protocol.ClipboardID, data []byte) error
}

// PrimaryReader lets the registry re-read the primary's own clipboard
// content when focus switches away from it. The actual platform
// read is the out-of-scope content-converter collaborator (spec §1).
type PrimaryReader interface {
	ReadClipboard(id protocol.ClipboardID) ([]byte, error)
}

type clipboardInfo struct {
	owner       string
	seqNum      uint32
	cachedBytes []byte
}

// Registry tracks ClipboardInfo for every clipboard id. All methods
// assume the caller already holds the single server lock (spec §5) —
// the registry itself adds no additional locking beyond what's needed
// for a standalone read of Owner/SeqNum/CachedBytes from elsewhere.
type Registry struct {
	mu    sync.Mutex
	infos map[protocol.ClipboardID]*clipboardInfo
}

func NewRegistry() *Registry {
	return &Registry{
		infos: map[protocol.ClipboardID]*clipboardInfo{
			protocol.ClipboardPrimary:   {},
			protocol.ClipboardSelection: {},
		},
	}
}

// IDs returns the clipboard ids the registry tracks, in a stable order.
func (r *Registry) IDs() []protocol.ClipboardID {
	return []protocol.ClipboardID{protocol.ClipboardPrimary, protocol.ClipboardSelection}
}

func (r *Registry) get(id protocol.ClipboardID) *clipboardInfo {
	info, ok := r.infos[id]
	if !ok {
		info = &clipboardInfo{}
		r.infos[id] = info
	}
	return info
}

// Owner returns the current owner screen name for id.
func (r *Registry) Owner(id protocol.ClipboardID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id).owner
}

// SeqNum returns the current sequence number for id.
func (r *Registry) SeqNum(id protocol.ClipboardID) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id).seqNum
}

// CachedBytes returns the currently cached marshalled bytes for id.
func (r *Registry) CachedBytes(id protocol.ClipboardID) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id).cachedBytes
}

// Grab implements spec §4.5's grab rule: a non-primary requester with
// a stale sequence number is rejected; otherwise ownership transfers
// and every connected screen is told about it — the requester learns
// its own dirty flag is now false, everyone else is told to grab.
func (r *Registry) Grab(requester string, id protocol.ClipboardID, seq uint32, requesterIsPrimary bool, screens map[string]Sink) {
	r.mu.Lock()
	info := r.get(id)
	if !requesterIsPrimary && seq < info.seqNum {
		log.Debug("rejected stale clipboard grab", "clipboard", id, "requester", requester, "seq", seq, "current", info.seqNum)
		r.mu.Unlock()
		return
	}
	info.owner = requester
	info.seqNum = seq
	info.cachedBytes = nil
	r.mu.Unlock()

	for name, sink := range screens {
		if name == requester {
			if err := sink.SetClipboardDirty(id, false); err != nil {
				log.Warn("notify requester clipboard clean failed", "screen", name, "error", err)
			}
			continue
		}
		if err := sink.GrabClipboard(id); err != nil {
			log.Warn("propagate clipboard grab failed", "screen", name, "error", err)
		}
	}
}

// Update implements spec §4.5's update rule: stale or no-op updates
// are dropped; otherwise the new bytes are cached, every non-owner
// screen is marked dirty, and the bytes are pushed to active only.
func (r *Registry) Update(id protocol.ClipboardID, seq uint32, data []byte, screens map[string]Sink, active Sink) {
	r.mu.Lock()
	info := r.get(id)
	if seq < info.seqNum {
		r.mu.Unlock()
		return
	}
	if bytes.Equal(info.cachedBytes, data) {
		r.mu.Unlock()
		return
	}
	info.seqNum = seq
	info.cachedBytes = data
	owner := info.owner
	r.mu.Unlock()

	for name, sink := range screens {
		if name == owner {
			continue
		}
		if err := sink.SetClipboardDirty(id, true); err != nil {
			log.Warn("mark clipboard dirty failed", "screen", name, "error", err)
		}
	}
	if active != nil {
		if err := active.SetClipboard(id, data); err != nil {
			log.Warn("push clipboard to active screen failed", "screen", active.Name(), "error", err)
		}
	}
}

// ResyncFromPrimary re-reads every clipboard id the primary owns and
// republishes it, per spec §4.5's "on switch from screen A to screen
// B: if A was the primary, ... re-read primary's bytes and run
// update." primaryName identifies the primary in the owner field;
// reader performs the actual out-of-scope platform read.
func (r *Registry) ResyncFromPrimary(primaryName string, reader PrimaryReader, screens map[string]Sink, active Sink) {
	for _, id := range r.IDs() {
		if r.Owner(id) != primaryName {
			continue
		}
		data, err := reader.ReadClipboard(id)
		if err != nil {
			log.Warn("read primary clipboard failed", "clipboard", id, "error", err)
			continue
		}
		r.Update(id, r.SeqNum(id)+1, data, screens, active)
	}
}

// PushAllTo sends every clipboard's current bytes to dst, per spec
// §4.6's switchScreen: "push every clipboard's current bytes to dst."
func (r *Registry) PushAllTo(dst Sink) {
	for _, id := range r.IDs() {
		data := r.CachedBytes(id)
		if data == nil {
			continue
		}
		if err := dst.SetClipboard(id, data); err != nil {
			log.Warn("push clipboard on switch failed", "screen", dst.Name(), "clipboard", id, "error", err)
		}
	}
}
