// Package meta implements the memcached meta protocol wire format: request
// and response encoding/decoding for mg/ms/md/ma/me/mn, plus the legacy
// stats text command.
//
// Request and Response are plain data containers; all serialization lives
// in WriteRequest/ReadRequest, and all parsing in ReadResponse and its
// batch/stats variants. Request construction uses a fluent builder over
// Flags rather than a slice of flag structs, so building a request never
// allocates more than once:
//
//	req := meta.NewRequest(meta.CmdGet, "mykey", nil).
//	    AddReturnValue().
//	    AddReturnCAS().
//	    AddReturnTTL()
//	err := meta.WriteRequest(conn, req)
//
//	resp, err := meta.ReadResponse(bufio.NewReader(conn))
//	if err != nil {
//	    if meta.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//	if resp.HasValue() {
//	    value := resp.Data
//	}
//
// Pipelining a batch, using CmdNoOp as an end marker:
//
//	reqs := []*meta.Request{
//	    meta.NewRequest(meta.CmdGet, "key1", nil).AddReturnValue().AddQuiet(),
//	    meta.NewRequest(meta.CmdGet, "key2", nil).AddReturnValue().AddQuiet(),
//	    meta.NewRequest(meta.CmdNoOp, "", nil),
//	}
//	for _, req := range reqs {
//	    meta.WriteRequest(conn, req)
//	}
//	resps, err := meta.ReadResponseBatch(bufio.NewReader(conn), 0, true)
//
// Every error type here (ClientError, ServerError, GenericError,
// ParseError, ConnectionError) implements ShouldCloseConnection, and the
// package-level ShouldCloseConnection helper dispatches to it; unrecognized
// error types are treated as unsafe to keep using.
package meta
