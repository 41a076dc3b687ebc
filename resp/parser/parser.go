// Package parser turns a byte stream into RESP frames. It generalizes
// the teacher's flat read-state machine (resp/parser/parser.go) into a
// recursive-descent reader so that arrays may nest arbitrarily (needed
// for CLUSTER SLOTS passthrough and for parsing whatever a backend
// sends back), while keeping the same public shape: a channel of
// Payload values, one per complete frame, so a session's read goroutine
// can range over it exactly like the teacher's handler does.
package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"rcproxy/interface/resp"
	"rcproxy/resp/reply"
)

// Payload wraps one parsed frame or the error that terminated parsing.
type Payload struct {
	Data resp.Reply
	Err  error
}

// ParseStream starts a goroutine that reads frames from reader and
// sends one Payload per frame, then closes ch. A clean io.EOF ends the
// stream without a Payload; any other read or protocol error is sent
// as one final Payload carrying that error before ch is closed.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parseLoop(reader, ch)
	return ch
}

func parseLoop(reader io.Reader, ch chan<- *Payload) {
	defer close(ch)
	br := bufio.NewReader(reader)
	for {
		frame, err := parseFrame(br)
		if err != nil {
			if err != io.EOF {
				ch <- &Payload{Err: err}
			}
			return
		}
		ch <- &Payload{Data: frame}
	}
}

// parseFrame reads exactly one complete RESP value, recursing into
// nested arrays. It blocks on br.ReadByte/ReadBytes when no more data
// is buffered — that syscall block is this goroutine's suspension
// point, standing in for the "resumable partial-frame state" spec.md
// describes for a non-blocking reactor.
func parseFrame(br *bufio.Reader) (resp.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, reply.MakeProtocolErrReply("empty line")
	}
	switch line[0] {
	case '+':
		return reply.MakeStatusReply(string(line[1:])), nil
	case '-':
		return reply.MakeErrReply(string(line[1:])), nil
	case ':':
		n, err := parseInt(line[1:])
		if err != nil {
			return nil, reply.MakeProtocolErrReply("invalid integer: " + string(line))
		}
		return reply.MakeIntReply(n), nil
	case '$':
		return parseBulk(br, line)
	case '*':
		return parseArray(br, line)
	default:
		// Inline command: space-separated tokens, no type prefix.
		return parseInline(line), nil
	}
}

func parseBulk(br *bufio.Reader, header []byte) (resp.Reply, error) {
	n, err := parseInt(header[1:])
	if err != nil {
		return nil, reply.MakeProtocolErrReply("invalid bulk length: " + string(header))
	}
	if n < -1 {
		return nil, reply.MakeProtocolErrReply("invalid bulk length: " + string(header))
	}
	if n == -1 {
		return &reply.NullBulkReply{}, nil
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, reply.MakeProtocolErrReply("bulk payload missing CRLF")
	}
	return reply.MakeBulkReply(buf[:n]), nil
}

func parseArray(br *bufio.Reader, header []byte) (resp.Reply, error) {
	n, err := parseInt(header[1:])
	if err != nil {
		return nil, reply.MakeProtocolErrReply("invalid array length: " + string(header))
	}
	if n < -1 {
		return nil, reply.MakeProtocolErrReply("invalid array length: " + string(header))
	}
	if n == -1 {
		return &reply.NullArrayReply{}, nil
	}
	if n == 0 {
		return &reply.EmptyMultiBulkReply{}, nil
	}
	// The common case — a multi-bulk command line — is a flat array
	// of bulk strings; keep it as [][]byte so the router/session
	// layer doesn't need to type-switch on every command argument.
	flat := make([][]byte, 0, n)
	elems := make([]resp.Reply, 0, n)
	allBulk := true
	for i := int64(0); i < n; i++ {
		el, err := parseFrame(br)
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
		if b, ok := el.(*reply.BulkReply); ok {
			flat = append(flat, b.Arg)
		} else {
			allBulk = false
		}
	}
	if allBulk {
		return reply.MakeMultiBulkReply(flat), nil
	}
	return reply.MakeArrayReply(elems), nil
}

func parseInline(line []byte) resp.Reply {
	fields := strings.Fields(string(line))
	args := make([][]byte, len(fields))
	for i, f := range fields {
		args[i] = []byte(f)
	}
	return reply.MakeMultiBulkReply(args)
}

// readLine reads up to and including CRLF, returning the line without
// the trailing CRLF.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, reply.MakeProtocolErrReply("line missing CRLF")
	}
	return line[:len(line)-2], nil
}

func parseInt(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}
