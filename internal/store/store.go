// Package store implements the in-memory keyspace described in spec.md §3
// and §4.2: string values with per-key TTL expiry, and append-only streams
// with monotonically increasing composite IDs, range scans, and blocking
// tail-reads. It is grounded on the storage layer of
// _examples/original_source/app/storage.py (the codecrafters-redis-python
// project this spec was distilled from) and on the stream-handling shape of
// other_examples/de738e1f_flonle-diy-redis__app-diyredis-commands.go.go and
// other_examples/3480e806_darshilgit-learning-redis__examples-basic-streams-main.go.go,
// reworked to the condition-variable concurrency model spec.md §5 requires.
package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type kind int

const (
	kindString kind = iota
	kindStream
)

type keyEntry struct {
	kind kind

	str    string
	stream *Stream

	hasExpiry   bool
	expiresAtMs int64
}

func (e *keyEntry) expired(nowMs int64) bool {
	return e.hasExpiry && e.expiresAtMs <= nowMs
}

// InitialValue is the shape the opaque snapshot loader (spec.md §6) hands
// to Store at startup: one string key with an optional absolute expiry.
type InitialValue struct {
	Value       string
	ExpiresAtMs int64
	HasExpiry   bool
}

// Store owns the entire keyspace and every Stream. It is the single
// mutator described in spec.md §3 "Ownership & lifecycle", and is safe for
// concurrent use: every method takes the same mutex, and XAdd/XRead
// coordinate through the same condition variable (spec.md §5).
type Store struct {
	mu   sync.Mutex
	cond *sync.Cond
	data map[string]*keyEntry

	// now is the injectable wall clock, defaulting to time.Now. Tests
	// override it to exercise expiry and XADD's "*" autogeneration without
	// sleeping.
	now func() time.Time
}

// New returns a Store seeded with the given initial keys, as produced by
// the snapshot loader.
func New(initial map[string]InitialValue) *Store {
	s := &Store{
		data: make(map[string]*keyEntry, len(initial)),
		now:  time.Now,
	}
	s.cond = sync.NewCond(&s.mu)
	for k, v := range initial {
		s.data[k] = &keyEntry{
			kind:        kindString,
			str:         v.Value,
			hasExpiry:   v.HasExpiry,
			expiresAtMs: v.ExpiresAtMs,
		}
	}
	return s
}

// SetClock overrides the store's wall clock. It exists for tests outside
// this package that need deterministic TTL/autogeneration behavior.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

// getLocked returns the live entry for key, lazily deleting it first if its
// TTL has passed. Callers must hold s.mu.
func (s *Store) getLocked(key string) (*keyEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.nowMs()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Get returns the string value at key, or false if it is absent, expired,
// or not a string (spec.md §4.2).
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLocked(key)
	if !ok || e.kind != kindString {
		return nil, false
	}
	return []byte(e.str), true
}

// SetOptions adjusts Set's behavior.
type SetOptions struct {
	// PXMillis, if non-nil, sets the key's expiry to PXMillis milliseconds
	// from now, computed once at write time (spec.md §4.2).
	PXMillis *int64
}

// Set stores value under key as a string, replacing whatever was there
// before (spec.md §4.2).
func (s *Store) Set(key string, value []byte, opts SetOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &keyEntry{kind: kindString, str: string(value)}
	if opts.PXMillis != nil {
		e.hasExpiry = true
		e.expiresAtMs = s.nowMs() + *opts.PXMillis
	}
	s.data[key] = e
}

// Type returns "none", "string", or "stream" for key (spec.md §4.2).
func (s *Store) Type(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLocked(key)
	if !ok {
		return "none"
	}
	if e.kind == kindStream {
		return "stream"
	}
	return "string"
}

// Keys returns every live key matching pattern ("*" and "?" wildcards).
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	var out []string
	for k, e := range s.data {
		if e.expired(now) {
			continue
		}
		if matchPattern(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

// GetAllKeys returns a snapshot of every live key, equivalent to
// Keys("*") (spec.md §4.2).
func (s *Store) GetAllKeys() []string {
	return s.Keys("*")
}

// errNotInteger is the exact text INCR replies with when the existing value
// can't be parsed as an integer (spec.md §4.2).
const errNotInteger = "ERR value is not an integer or out of range"

// Incr increments the integer value at key, creating it with value 1 if
// absent (spec.md §4.2). The second return is the wire-visible error
// string, empty on success.
func (s *Store) Incr(key string) (int64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLocked(key)
	if !ok {
		s.data[key] = &keyEntry{kind: kindString, str: "1"}
		return 1, ""
	}
	if e.kind != kindString {
		return 0, errNotInteger
	}

	n, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, errNotInteger
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, ""
}

// streamForLocked returns the Stream at key, creating it if key is absent, or an
// error if key holds a string (spec.md §3: "a stream key never collides
// with a string key"). Callers must hold s.mu.
func (s *Store) streamForLocked(key string) (*Stream, string) {
	e, ok := s.getLocked(key)
	if !ok {
		e = &keyEntry{kind: kindStream, stream: &Stream{}}
		s.data[key] = e
		return e.stream, ""
	}
	if e.kind != kindStream {
		return nil, "ERR WRONGTYPE Operation against a key holding the wrong kind of value"
	}
	return e.stream, ""
}

// XAdd appends a new entry to the stream at key, resolving idSpec per the
// grammar in spec.md §3 ("*", "<ms>-*", or an explicit "<ms>-<seq>"). It
// returns the resolved ID, or an error whose text is the exact wire-visible
// string from spec.md §4.2/§8.
func (s *Store) XAdd(key, idSpec string, fields []FieldValue) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, errMsg := s.streamForLocked(key)
	if errMsg != "" {
		return ID{}, errString(errMsg)
	}

	id, err := s.resolveID(stream, idSpec)
	if err != nil {
		return ID{}, err
	}

	stream.append(Entry{ID: id, Fields: fields})
	s.cond.Broadcast()
	return id, nil
}

func (s *Store) resolveID(stream *Stream, idSpec string) (ID, error) {
	if idSpec == "*" {
		return stream.resolveAutoID(uint64(s.nowMs())), nil
	}
	if n := len(idSpec); n > 1 && idSpec[n-2] == '-' && idSpec[n-1] == '*' {
		ms, err := strconv.ParseUint(idSpec[:n-2], 10, 64)
		if err != nil {
			return ID{}, errString("ERR Invalid stream ID specified as stream command argument")
		}
		return stream.resolveSeqWildcardID(ms)
	}

	id, err := ParseID(idSpec)
	if err != nil {
		return ID{}, errString("ERR Invalid stream ID specified as stream command argument")
	}
	if err := stream.resolveExplicitID(id); err != nil {
		return ID{}, err
	}
	return id, nil
}

// XRange returns every entry of the stream at key with low <= ID <= high,
// per the endpoint grammar in spec.md §3. A missing or non-existent stream
// yields an empty slice, matching the retrieval pack's treatment of
// XRANGE on an absent key.
func (s *Store) XRange(key, lowSpec, highSpec string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLocked(key)
	if !ok {
		return nil, nil
	}
	if e.kind != kindStream {
		return nil, errString("ERR WRONGTYPE Operation against a key holding the wrong kind of value")
	}

	low, err := ParseRangeEndpoint(lowSpec, LowerBound)
	if err != nil {
		return nil, errString("ERR Invalid stream ID specified as stream command argument")
	}
	high, err := ParseRangeEndpoint(highSpec, UpperBound)
	if err != nil {
		return nil, errString("ERR Invalid stream ID specified as stream command argument")
	}

	return e.stream.rangeBetween(low, high), nil
}

// StreamRead is one stream's contribution to an XREAD reply.
type StreamRead struct {
	Stream  string
	Entries []Entry
}

// XRead implements the blocking tail-read described in spec.md §4.2. ok is
// false exactly when a single-stream request ended with nothing new, by
// timeout or by ctx being cancelled, in which case the reply must be the
// null bulk rather than an array.
func (s *Store) XRead(ctx context.Context, streams, ids []string, block *int64) (reads []StreamRead, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	afters := make([]ID, len(streams))
	for i, idSpec := range ids {
		after, err := ParseRangeEndpoint(idSpec, LowerBound)
		if err != nil {
			after = ID{}
		}
		afters[i] = after
	}

	reads = s.collectReadsLocked(streams, afters)
	if block == nil || countEntries(reads) > 0 {
		return reads, true
	}

	// Blocking case: spec.md §3 requires that, for block == 0, the
	// per-stream start ID be recomputed at wait time to each stream's
	// then-current last ID, so only genuinely new entries are returned.
	if *block == 0 {
		for i, name := range streams {
			if e, ok := s.getLocked(name); ok && e.kind == kindStream {
				if last, ok := e.stream.lastID(); ok {
					afters[i] = last
				}
			}
		}
	}

	deadline := time.Time{}
	if *block > 0 {
		deadline = s.now().Add(time.Duration(*block) * time.Millisecond)
	}

	for {
		reads = s.collectReadsLocked(streams, afters)
		if countEntries(reads) > 0 {
			return reads, true
		}

		if ctx.Err() != nil {
			return emptyReadsOrNull(streams)
		}

		if !s.waitLocked(deadline) {
			return emptyReadsOrNull(streams)
		}
	}
}

// waitLocked waits on s.cond until notified or deadline passes (a zero
// deadline means wait indefinitely). It returns false on timeout. Callers
// must hold s.mu; Wait releases and reacquires it.
func (s *Store) waitLocked(deadline time.Time) bool {
	if deadline.IsZero() {
		s.cond.Wait()
		return true
	}

	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		return false
	}

	// sync.Cond has no timed wait, so a timer goroutine broadcasts once the
	// deadline passes; this is the same pattern mediocre-go-lib's mredis
	// package uses radix's read-deadline-driven blocking for on the client
	// side, adapted here to a condition variable on the server side.
	timer := time.AfterFunc(remaining, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.cond.Wait()
	return s.now().Before(deadline)
}

func (s *Store) collectReadsLocked(streams []string, afters []ID) []StreamRead {
	out := make([]StreamRead, len(streams))
	for i, name := range streams {
		out[i] = StreamRead{Stream: name}
		e, ok := s.getLocked(name)
		if !ok || e.kind != kindStream {
			continue
		}
		out[i].Entries = e.stream.rangeAfter(afters[i])
	}
	return out
}

func countEntries(reads []StreamRead) int {
	n := 0
	for _, r := range reads {
		n += len(r.Entries)
	}
	return n
}

func emptyReadsOrNull(streams []string) ([]StreamRead, bool) {
	if len(streams) == 1 {
		return nil, false
	}
	out := make([]StreamRead, len(streams))
	for i, name := range streams {
		out[i] = StreamRead{Stream: name}
	}
	return out, true
}

type errString string

func (e errString) Error() string { return string(e) }
