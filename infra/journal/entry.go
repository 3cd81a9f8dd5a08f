package journal

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// State is the delivery state of a journaled cycle report.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one reclamation cycle as recorded in the journal, plus its
// outbox delivery state.
type Entry struct {
	Cycle    uint64
	Instance string
	Time     int64 // unix nanos
	Duration int64 // nanos

	Retired    uint64
	Duplicates uint64
	Live       uint64
	Misses     uint64
	Freed      uint64
	Carried    uint64
	Stalled    uint64

	State       State
	Retries     uint32
	LastAttempt int64
}

var ErrCorrupt = errors.New("journal: corrupt entry")

// binary layout, big endian:
//
//	[state:1][retries:4][lastAttempt:8][cycle:8][time:8][duration:8]
//	[retired..stalled: 7x8][instanceLen:1][instance][crc32:4]
const fixedLen = 1 + 4 + 8 + 8 + 8 + 8 + 7*8 + 1

func encodeEntry(e Entry) []byte {
	inst := e.Instance
	if len(inst) > 255 {
		inst = inst[:255]
	}
	buf := make([]byte, fixedLen+len(inst)+4)
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	off := 5
	for _, v := range []uint64{
		uint64(e.LastAttempt), e.Cycle, uint64(e.Time), uint64(e.Duration),
		e.Retired, e.Duplicates, e.Live, e.Misses, e.Freed, e.Carried, e.Stalled,
	} {
		binary.BigEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}
	buf[off] = byte(len(inst))
	off++
	off += copy(buf[off:], inst)
	binary.BigEndian.PutUint32(buf[off:], checksum(buf[:off]))
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < fixedLen+4 {
		return Entry{}, errors.Wrapf(ErrCorrupt, "length %d", len(b))
	}
	body, sum := b[:len(b)-4], binary.BigEndian.Uint32(b[len(b)-4:])
	if !checksumValid(body, sum) {
		return Entry{}, errors.Wrap(ErrCorrupt, "checksum mismatch")
	}
	instLen := int(body[fixedLen-1])
	if len(body) != fixedLen+instLen {
		return Entry{}, errors.Wrapf(ErrCorrupt, "instance length %d", instLen)
	}

	var v [11]uint64
	off := 5
	for i := range v {
		v[i] = binary.BigEndian.Uint64(body[off : off+8])
		off += 8
	}
	return Entry{
		State:       State(body[0]),
		Retries:     binary.BigEndian.Uint32(body[1:5]),
		LastAttempt: int64(v[0]),
		Cycle:       v[1],
		Time:        int64(v[2]),
		Duration:    int64(v[3]),
		Retired:     v[4],
		Duplicates:  v[5],
		Live:        v[6],
		Misses:      v[7],
		Freed:       v[8],
		Carried:     v[9],
		Stalled:     v[10],
		Instance:    string(body[fixedLen:]),
	}, nil
}
