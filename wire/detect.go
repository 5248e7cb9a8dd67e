package wire

// Protocol identifies which of the three sub-protocols a connection is
// speaking. Detection happens once, from the connection's first byte, and
// is irrevocable for the life of the connection (§4.2).
type Protocol int

const (
	Unknown Protocol = iota
	Ascii
	Umbrella
	Caret
)

func (p Protocol) String() string {
	switch p {
	case Ascii:
		return "ascii"
	case Umbrella:
		return "umbrella"
	case Caret:
		return "caret"
	default:
		return "unknown"
	}
}

// UmbrellaMagicByte and CaretMagicByte are the fixed first bytes that
// identify the two binary framings. Both are chosen outside the printable
// ASCII letter range so they can never collide with the first byte of a
// known ASCII command verb.
const (
	UmbrellaMagicByte byte = 0x81
	CaretMagicByte    byte = 0x9E
)

// OutOfOrder reports whether p allows multiple in-flight requests on a
// single connection, identified by request ID. Per §3's Parser state
// invariant, this holds for exactly the binary protocols.
func (p Protocol) OutOfOrder() bool {
	return p == Umbrella || p == Caret
}

// isAsciiCommandStart reports whether b can begin a known ASCII command
// verb. The reference source doesn't enumerate this table (Open Question
// (a) in the design notes); this implementation accepts any lowercase
// ASCII letter, since every standard memcached command (get, set, add,
// replace, append, prepend, cas, delete, incr, decr, touch, gat, stats,
// flush_all, version, verbosity, quit) starts with one, and the line
// parser downstream is responsible for rejecting unknown verbs.
func isAsciiCommandStart(b byte) bool {
	return b >= 'a' && b <= 'z'
}

// Detect classifies a connection's sub-protocol from its first received
// byte, per the fixed table in §4.2.
func Detect(first byte) Protocol {
	switch {
	case first == UmbrellaMagicByte:
		return Umbrella
	case first == CaretMagicByte:
		return Caret
	case isAsciiCommandStart(first):
		return Ascii
	default:
		return Unknown
	}
}
