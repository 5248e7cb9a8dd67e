package meta

import (
	"strconv"
	"time"
)

// Request is a low-level, serialization-free container for one meta
// protocol command. Fields map directly onto wire elements; see the
// Cmd* constants for the flags each command accepts.
type Request struct {
	Command CmdType

	// Key is the cache key. Empty for CmdNoOp.
	Key string

	// Data is the value to store, for CmdSet only. Its wire size is
	// derived from len(Data) rather than tracked separately.
	Data []byte

	// Flags holds the exact bytes that follow the key (or size) on the
	// wire, leading spaces included — e.g. " v c t" or " T60 Oopaque".
	Flags Flags
}

// Flags is the wire-form encoding of a run of meta protocol flags: a
// byte string built incrementally so that writing a request never needs
// to walk a separate flag list, and reading one never needs to allocate
// per flag.
type Flags []byte

func (f Flags) IsEmpty() bool { return len(f) == 0 }

func (f *Flags) Reset() { *f = (*f)[:0] }

func (f Flags) Clone() Flags { return append(Flags(nil), f...) }

func (f *Flags) Add(flagType FlagType) {
	*f = append(*f, ' ', byte(flagType))
}

func (f *Flags) AddTokenBytes(flagType FlagType, token []byte) {
	*f = append(*f, ' ', byte(flagType))
	*f = append(*f, token...)
}

func (f *Flags) AddTokenString(flagType FlagType, token string) {
	*f = append(*f, ' ', byte(flagType))
	*f = append(*f, token...)
}

// commonDurations holds the TTLs seen often enough in cache traffic
// (5m/10m/30m/1h/2h/1d/1w) to be worth pre-rendering; strconv.Itoa
// already covers 0-100 on its own.
var commonDurations = [...]struct {
	seconds int
	text    string
}{
	{300, "300"},
	{600, "600"},
	{1800, "1800"},
	{3600, "3600"},
	{7200, "7200"},
	{86400, "86400"},
	{604800, "604800"},
}

func (f *Flags) AddInt(flagType FlagType, value int) {
	*f = append(*f, ' ', byte(flagType))
	for _, d := range commonDurations {
		if d.seconds == value {
			*f = append(*f, d.text...)
			return
		}
	}
	*f = strconv.AppendInt(*f, int64(value), 10)
}

func (f *Flags) AddInt64(flagType FlagType, value int64) {
	*f = append(*f, ' ', byte(flagType))
	*f = strconv.AppendInt(*f, value, 10)
}

func (f *Flags) AddUint64(flagType FlagType, value uint64) {
	*f = append(*f, ' ', byte(flagType))
	*f = strconv.AppendUint(*f, value, 10)
}

func (f *Flags) AddDurationSeconds(flagType FlagType, d time.Duration) {
	f.AddInt64(flagType, int64(d/time.Second))
}

func (f Flags) Has(flagType FlagType) bool {
	_, ok := f.Get(flagType)
	return ok
}

// Get returns the token for the first occurrence of flagType. ok is
// false only if the flag is absent; a present flag with no token
// returns (nil, true).
func (f Flags) Get(flagType FlagType) (token []byte, ok bool) {
	for i := 0; i < len(f); {
		i = flagsSkipSpaces(f, i)
		if i >= len(f) {
			return nil, false
		}
		t := FlagType(f[i])
		i++
		start := i
		for i < len(f) && f[i] != ' ' {
			i++
		}
		if t == flagType {
			if start == i {
				return nil, true
			}
			return f[start:i], true
		}
	}
	return nil, false
}

func flagsSkipSpaces(b []byte, idx int) int {
	for idx < len(b) && b[idx] == ' ' {
		idx++
	}
	return idx
}

// NewRequest builds a Request for cmd. key and data are interpreted per
// command: CmdSet needs both, CmdGet/CmdDelete/CmdArithmetic/CmdDebug
// need only key, CmdNoOp needs neither. Chain the Add* methods to
// attach flags afterward.
func NewRequest(cmd CmdType, key string, data []byte) *Request {
	return &Request{Command: cmd, Key: key, Data: data}
}

func (r *Request) HasFlag(flagType FlagType) bool {
	return r.Flags.Has(flagType)
}

func (r *Request) GetFlagToken(flagType FlagType) (token []byte, ok bool) {
	return r.Flags.Get(flagType)
}

// Universal flags, valid on every command.

func (r *Request) AddOpaque(token string) *Request {
	r.Flags.AddTokenString(FlagOpaque, token)
	return r
}
func (r *Request) AddQuiet() *Request     { r.Flags.Add(FlagQuiet); return r }
func (r *Request) AddBase64Key() *Request { r.Flags.Add(FlagBase64Key); return r }
func (r *Request) AddReturnKey() *Request { r.Flags.Add(FlagReturnKey); return r }

// Retrieval flags: mg and ma.

func (r *Request) AddReturnValue() *Request       { r.Flags.Add(FlagReturnValue); return r }
func (r *Request) AddReturnCAS() *Request         { r.Flags.Add(FlagReturnCAS); return r }
func (r *Request) AddReturnTTL() *Request         { r.Flags.Add(FlagReturnTTL); return r }
func (r *Request) AddReturnClientFlags() *Request { r.Flags.Add(FlagReturnClientFlags); return r }
func (r *Request) AddReturnSize() *Request        { r.Flags.Add(FlagReturnSize); return r }
func (r *Request) AddReturnHit() *Request         { r.Flags.Add(FlagReturnHit); return r }
func (r *Request) AddReturnLastAccess() *Request  { r.Flags.Add(FlagReturnLastAccess); return r }

// Modification flags: TTL, CAS, client flags.

func (r *Request) AddTTL(seconds int) *Request { r.Flags.AddInt(FlagTTL, seconds); return r }
func (r *Request) AddTTLDuration(d time.Duration) *Request {
	r.Flags.AddDurationSeconds(FlagTTL, d)
	return r
}
func (r *Request) AddCAS(value uint64) *Request { r.Flags.AddUint64(FlagCAS, value); return r }
func (r *Request) AddExplicitCAS(value uint64) *Request {
	r.Flags.AddUint64(FlagExplicitCAS, value)
	return r
}
func (r *Request) AddClientFlags(flags uint32) *Request {
	r.Flags.AddInt(FlagClientFlags, int(flags))
	return r
}

// mg-specific flags.

func (r *Request) AddNoLRUBump() *Request { r.Flags.Add(FlagNoLRUBump); return r }
func (r *Request) AddRecache(seconds int) *Request {
	r.Flags.AddInt(FlagRecache, seconds)
	return r
}
func (r *Request) AddRecacheDuration(d time.Duration) *Request {
	r.Flags.AddDurationSeconds(FlagRecache, d)
	return r
}
func (r *Request) AddVivify(seconds int) *Request { r.Flags.AddInt(FlagVivify, seconds); return r }
func (r *Request) AddVivifyDuration(d time.Duration) *Request {
	r.Flags.AddDurationSeconds(FlagVivify, d)
	return r
}

// ms-specific flags: storage mode and invalidation.

func (r *Request) AddMode(mode string) *Request { r.Flags.AddTokenString(FlagMode, mode); return r }
func (r *Request) AddModeSet() *Request         { return r.AddMode(ModeSet) }
func (r *Request) AddModeAdd() *Request         { return r.AddMode(ModeAdd) }
func (r *Request) AddModeReplace() *Request     { return r.AddMode(ModeReplace) }
func (r *Request) AddModeAppend() *Request      { return r.AddMode(ModeAppend) }
func (r *Request) AddModePrepend() *Request     { return r.AddMode(ModePrepend) }
func (r *Request) AddInvalidate() *Request      { r.Flags.Add(FlagInvalidate); return r }

// ma-specific flags: delta and initial value for auto-created counters.

func (r *Request) AddDelta(amount uint64) *Request { r.Flags.AddUint64(FlagDelta, amount); return r }
func (r *Request) AddInitialValue(value uint64) *Request {
	r.Flags.AddUint64(FlagInitialValue, value)
	return r
}
func (r *Request) AddModeIncrement() *Request { return r.AddMode(ModeIncrement) }
func (r *Request) AddModeDecrement() *Request { return r.AddMode(ModeDecrement) }

// md-specific flag: drop value, keep metadata.

func (r *Request) AddRemoveValue() *Request { r.Flags.Add(FlagRemoveValue); return r }
