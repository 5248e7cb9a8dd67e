package meta

import "strings"

// Response is a parsed meta protocol reply. Like Request, it is a plain
// data container: parsing happens in reader.go, not here.
type Response struct {
	// Status is the 2-character reply code: HD, VA, EN, NF, NS, EX, MN, ME.
	Status StatusType

	// Data holds the value for a VA reply, or the raw "k=v k2=v2" tail of
	// an ME reply (see ParseDebugParams). Empty otherwise.
	Data []byte

	// Flags holds whatever flags the server echoed back, in wire order.
	Flags Flags

	// Error is set instead of Status for a non-meta ERROR/CLIENT_ERROR/
	// SERVER_ERROR reply. When set, Status/Data/Flags are meaningless.
	Error error
}

func (r *Response) HasError() bool { return r.Error != nil }

func (r *Response) IsSuccess() bool {
	switch r.Status {
	case StatusHD, StatusVA, StatusMN, StatusME:
		return true
	default:
		return false
	}
}

func (r *Response) IsMiss() bool       { return r.Status == StatusEN || r.Status == StatusNF }
func (r *Response) IsNotStored() bool  { return r.Status == StatusNS }
func (r *Response) IsCASMismatch() bool { return r.Status == StatusEX }
func (r *Response) HasValue() bool     { return r.Status == StatusVA && r.Data != nil }

func (r *Response) HasFlag(flagType FlagType) bool { return r.Flags.Has(flagType) }

func (r *Response) GetFlagToken(flagType FlagType) (token []byte, ok bool) {
	return r.Flags.Get(flagType)
}

func (r *Response) HasWinFlag() bool        { return r.HasFlag(FlagWin) }
func (r *Response) HasStaleFlag() bool      { return r.HasFlag(FlagStale) }
func (r *Response) HasAlreadyWonFlag() bool { return r.HasFlag(FlagAlreadyWon) }

// ParseDebugParams splits an ME reply's data block ("size=1024 ttl=3600")
// into a map. Tokens without '=' are dropped rather than erroring, since
// ME is a debugging aid and its exact field set varies by server build.
func ParseDebugParams(data []byte) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Fields(string(data)) {
		if key, value, ok := strings.Cut(part, "="); ok {
			params[key] = value
		}
	}
	return params
}
