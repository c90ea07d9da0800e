package clipboard

import (
	"errors"
	"testing"

	"github.com/shanesims/screenlink/internal/protocol"
)

type fakeSink struct {
	name       string
	dirty      map[protocol.ClipboardID]bool
	data       map[protocol.ClipboardID][]byte
	grabCalls  int
	failNext   bool
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{
		name:  name,
		dirty: make(map[protocol.ClipboardID]bool),
		data:  make(map[protocol.ClipboardID][]byte),
	}
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) GrabClipboard(id protocol.ClipboardID) error {
	s.grabCalls++
	if s.failNext {
		s.failNext = false
		return errors.New("simulated failure")
	}
	return nil
}

func (s *fakeSink) SetClipboardDirty(id protocol.ClipboardID, dirty bool) error {
	s.dirty[id] = dirty
	return nil
}

func (s *fakeSink) SetClipboard(id protocol.ClipboardID, data []byte) error {
	s.data[id] = data
	return nil
}

func TestGrabTransfersOwnershipAndNotifiesOthers(t *testing.T) {
	r := NewRegistry()
	a := newFakeSink("a")
	b := newFakeSink("b")
	screens := map[string]Sink{"a": a, "b": b}

	r.Grab("a", protocol.ClipboardPrimary, 1, false, screens)

	if got := r.Owner(protocol.ClipboardPrimary); got != "a" {
		t.Fatalf("owner = %q, want a", got)
	}
	if dirty, ok := a.dirty[protocol.ClipboardPrimary]; !ok || dirty {
		t.Fatalf("requester a should be marked clean, got %v present=%v", dirty, ok)
	}
	if b.grabCalls != 1 {
		t.Fatalf("b should receive one GrabClipboard call, got %d", b.grabCalls)
	}
}

func TestGrabRejectsStaleSequence(t *testing.T) {
	r := NewRegistry()
	a := newFakeSink("a")
	b := newFakeSink("b")
	screens := map[string]Sink{"a": a, "b": b}

	r.Grab("a", protocol.ClipboardPrimary, 5, false, screens)
	r.Grab("b", protocol.ClipboardPrimary, 2, false, screens)

	if got := r.Owner(protocol.ClipboardPrimary); got != "a" {
		t.Fatalf("owner = %q, want a (stale grab from b should be rejected)", got)
	}
}

func TestUpdateDropsStaleAndDuplicateData(t *testing.T) {
	r := NewRegistry()
	a := newFakeSink("a")
	screens := map[string]Sink{"a": a}

	r.Update(protocol.ClipboardPrimary, 1, []byte("hello"), screens, a)
	if got := string(r.CachedBytes(protocol.ClipboardPrimary)); got != "hello" {
		t.Fatalf("cached = %q, want hello", got)
	}

	r.Update(protocol.ClipboardPrimary, 0, []byte("stale"), screens, a)
	if got := string(r.CachedBytes(protocol.ClipboardPrimary)); got != "hello" {
		t.Fatalf("stale update should be dropped, got %q", got)
	}

	r.Update(protocol.ClipboardPrimary, 2, []byte("hello"), screens, a)
	if got := r.SeqNum(protocol.ClipboardPrimary); got != 1 {
		t.Fatalf("no-op (identical bytes) update should be dropped, seq = %d, want 1", got)
	}
}

func TestUpdateMarksNonOwnersDirtyAndPushesToActiveOnly(t *testing.T) {
	r := NewRegistry()
	owner := newFakeSink("owner")
	other := newFakeSink("other")
	active := newFakeSink("active")
	screens := map[string]Sink{"owner": owner, "other": other, "active": active}

	r.Grab("owner", protocol.ClipboardPrimary, 1, false, screens)
	r.Update(protocol.ClipboardPrimary, 2, []byte("data"), screens, active)

	if dirty := other.dirty[protocol.ClipboardPrimary]; !dirty {
		t.Fatal("non-owner screen should be marked dirty")
	}
	if dirty, ok := owner.dirty[protocol.ClipboardPrimary]; ok && dirty {
		t.Fatal("owner should not be marked dirty by its own update")
	}
	if _, ok := active.data[protocol.ClipboardPrimary]; !ok {
		t.Fatal("active screen should have received the pushed bytes")
	}
	if _, ok := other.data[protocol.ClipboardPrimary]; ok {
		t.Fatal("non-active screen should not receive pushed bytes directly")
	}
}

type fakePrimaryReader struct {
	content map[protocol.ClipboardID][]byte
}

func (f *fakePrimaryReader) ReadClipboard(id protocol.ClipboardID) ([]byte, error) {
	return f.content[id], nil
}

func TestResyncFromPrimaryRereadsOwnedClipboards(t *testing.T) {
	r := NewRegistry()
	primary := newFakeSink("primary")
	secondary := newFakeSink("secondary")
	screens := map[string]Sink{"primary": primary, "secondary": secondary}

	r.Grab("primary", protocol.ClipboardPrimary, 1, true, screens)
	reader := &fakePrimaryReader{content: map[protocol.ClipboardID][]byte{
		protocol.ClipboardPrimary: []byte("fresh from primary"),
	}}

	r.ResyncFromPrimary("primary", reader, screens, secondary)

	if got := string(r.CachedBytes(protocol.ClipboardPrimary)); got != "fresh from primary" {
		t.Fatalf("cached = %q, want %q", got, "fresh from primary")
	}
	if got := string(secondary.data[protocol.ClipboardPrimary]); got != "fresh from primary" {
		t.Fatal("active secondary should have received the resynced bytes")
	}
}

func TestPushAllToSendsEveryCachedClipboard(t *testing.T) {
	r := NewRegistry()
	a := newFakeSink("a")
	screens := map[string]Sink{"a": a}
	r.Update(protocol.ClipboardPrimary, 1, []byte("p"), screens, nil)
	r.Update(protocol.ClipboardSelection, 1, []byte("s"), screens, nil)

	dst := newFakeSink("dst")
	r.PushAllTo(dst)

	if string(dst.data[protocol.ClipboardPrimary]) != "p" || string(dst.data[protocol.ClipboardSelection]) != "s" {
		t.Fatalf("dst did not receive both cached clipboards: %+v", dst.data)
	}
}
