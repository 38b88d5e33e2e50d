package recovery

import (
	"encoding/binary"
	"fmt"

	"github.com/hiroakis/stormdb/types"
)

// LogRecordType tags the kind of change a log record describes.
type LogRecordType int32

const (
	InvalidRecord LogRecordType = iota
	Insert
	MarkDelete
	ApplyDelete
	RollbackDelete
	Update
	Begin
	Commit
	Abort
	// NewPage records a table page being freshly initialized, applied
	// unconditionally on redo regardless of LSN ordering.
	NewPage
)

func (t LogRecordType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case MarkDelete:
		return "MARKDELETE"
	case ApplyDelete:
		return "APPLYDELETE"
	case RollbackDelete:
		return "ROLLBACKDELETE"
	case Update:
		return "UPDATE"
	case Begin:
		return "BEGIN"
	case Commit:
		return "COMMIT"
	case Abort:
		return "ABORT"
	case NewPage:
		return "NEWPAGE"
	default:
		return "INVALID"
	}
}

// HeaderSize is the 5 fixed-width header fields common to every record:
// size, lsn, txn_id, prev_lsn, type.
const HeaderSize = 20

// LogRecord is a single write-ahead log entry. Every field outside the
// header is only meaningful for the record's Type; tuple payloads are
// opaque length-prefixed byte blobs, per the tuple-format non-goal.
type LogRecord struct {
	Size    uint32
	LSN     types.LSN
	TxnID   types.TxnID
	PrevLSN types.LSN
	Type    LogRecordType

	RID types.RID

	// Tuple holds the inserted tuple for Insert, the deleted tuple for
	// the Delete family, or the old tuple for Update.
	Tuple []byte
	// NewTuple holds Update's new tuple value.
	NewTuple []byte

	// PageID is the target of a NewPage record: the page to
	// re-initialize as empty on redo.
	PageID types.PageID
}

func NewBeginRecord(txnID types.TxnID, prevLSN types.LSN) *LogRecord {
	return &LogRecord{Size: HeaderSize, TxnID: txnID, PrevLSN: prevLSN, Type: Begin}
}

func NewCommitRecord(txnID types.TxnID, prevLSN types.LSN) *LogRecord {
	return &LogRecord{Size: HeaderSize, TxnID: txnID, PrevLSN: prevLSN, Type: Commit}
}

func NewAbortRecord(txnID types.TxnID, prevLSN types.LSN) *LogRecord {
	return &LogRecord{Size: HeaderSize, TxnID: txnID, PrevLSN: prevLSN, Type: Abort}
}

// NewInsertRecord builds an INSERT record. tuple is the inserted
// tuple's raw bytes.
func NewInsertRecord(txnID types.TxnID, prevLSN types.LSN, rid types.RID, tuple []byte) *LogRecord {
	return &LogRecord{
		Size:    uint32(HeaderSize + types.SizeOfRID + 4 + len(tuple)),
		TxnID:   txnID,
		PrevLSN: prevLSN,
		Type:    Insert,
		RID:     rid,
		Tuple:   tuple,
	}
}

// NewDeleteRecord builds a delete-family record (MarkDelete, ApplyDelete,
// or RollbackDelete). tuple is the affected tuple's bytes, carried so
// undo can restore or redo can reapply it.
func NewDeleteRecord(recordType LogRecordType, txnID types.TxnID, prevLSN types.LSN, rid types.RID, tuple []byte) *LogRecord {
	return &LogRecord{
		Size:    uint32(HeaderSize + types.SizeOfRID + 4 + len(tuple)),
		TxnID:   txnID,
		PrevLSN: prevLSN,
		Type:    recordType,
		RID:     rid,
		Tuple:   tuple,
	}
}

// NewUpdateRecord builds an UPDATE record carrying both the old and new
// tuple bytes, so undo can swap back to old and redo can reapply new.
func NewUpdateRecord(txnID types.TxnID, prevLSN types.LSN, rid types.RID, oldTuple, newTuple []byte) *LogRecord {
	return &LogRecord{
		Size:     uint32(HeaderSize + types.SizeOfRID + 4 + len(oldTuple) + 4 + len(newTuple)),
		TxnID:    txnID,
		PrevLSN:  prevLSN,
		Type:     Update,
		RID:      rid,
		Tuple:    oldTuple,
		NewTuple: newTuple,
	}
}

// NewNewPageRecord builds a NEWPAGE record for pageID, the page that
// should be reset to empty on redo.
func NewNewPageRecord(txnID types.TxnID, prevLSN types.LSN, pageID types.PageID) *LogRecord {
	return &LogRecord{
		Size:    HeaderSize + 4,
		TxnID:   txnID,
		PrevLSN: prevLSN,
		Type:    NewPage,
		PageID:  pageID,
	}
}

// Encode serializes the record's header and payload into buf, which
// must be at least r.Size bytes.
func (r *LogRecord) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], r.Size)
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.LSN))
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.TxnID))
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.PrevLSN))
	binary.LittleEndian.PutUint32(buf[16:], uint32(r.Type))

	pos := HeaderSize
	switch r.Type {
	case Insert, MarkDelete, ApplyDelete, RollbackDelete:
		pos += encodeRID(buf[pos:], r.RID)
		pos += encodeBytes(buf[pos:], r.Tuple)
	case Update:
		pos += encodeRID(buf[pos:], r.RID)
		pos += encodeBytes(buf[pos:], r.Tuple)
		pos += encodeBytes(buf[pos:], r.NewTuple)
	case NewPage:
		binary.LittleEndian.PutUint32(buf[pos:], uint32(r.PageID))
	}
}

func encodeRID(buf []byte, rid types.RID) int {
	copy(buf, rid.Serialize())
	return types.SizeOfRID
}

func encodeBytes(buf []byte, data []byte) int {
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	return 4 + len(data)
}

// DecodeHeader parses just the fixed header from buf, used by the log
// recovery scanner to learn a record's total size before reading its
// payload.
func DecodeHeader(buf []byte) *LogRecord {
	return &LogRecord{
		Size:    binary.LittleEndian.Uint32(buf[0:]),
		LSN:     types.LSN(binary.LittleEndian.Uint32(buf[4:])),
		TxnID:   types.TxnID(binary.LittleEndian.Uint32(buf[8:])),
		PrevLSN: types.LSN(binary.LittleEndian.Uint32(buf[12:])),
		Type:    LogRecordType(binary.LittleEndian.Uint32(buf[16:])),
	}
}

// Decode parses a complete record (header already known via
// DecodeHeader) out of buf, which must hold at least r.Size bytes
// starting at the record's header.
func Decode(buf []byte) (*LogRecord, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("recovery: truncated log record header (%d bytes)", len(buf))
	}
	r := DecodeHeader(buf)
	if len(buf) < int(r.Size) {
		return nil, fmt.Errorf("recovery: truncated log record: want %d bytes, have %d", r.Size, len(buf))
	}

	pos := HeaderSize
	switch r.Type {
	case Insert, MarkDelete, ApplyDelete, RollbackDelete:
		r.RID = types.NewRIDFromBytes(buf[pos : pos+types.SizeOfRID])
		pos += types.SizeOfRID
		tuple, n := decodeBytes(buf[pos:])
		r.Tuple = tuple
		pos += n
	case Update:
		r.RID = types.NewRIDFromBytes(buf[pos : pos+types.SizeOfRID])
		pos += types.SizeOfRID
		oldTuple, n := decodeBytes(buf[pos:])
		r.Tuple = oldTuple
		pos += n
		newTuple, n := decodeBytes(buf[pos:])
		r.NewTuple = newTuple
		pos += n
	case NewPage:
		r.PageID = types.PageID(binary.LittleEndian.Uint32(buf[pos:]))
	}
	return r, nil
}

func decodeBytes(buf []byte) ([]byte, int) {
	n := binary.LittleEndian.Uint32(buf)
	out := make([]byte, n)
	copy(out, buf[4:4+n])
	return out, int(4 + n)
}
