// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import (
	"github.com/hiroakis/stormdb/types"
)

// PageSize is the size of a page in bytes.
const PageSize = 4096

// Page is a buffer-pool frame: a fixed-size byte buffer plus the
// book-keeping metadata the buffer pool manager and log manager need
// (pin count, dirty flag, LSN).
type Page struct {
	id       types.PageID
	pinCount int
	isDirty  bool
	lsn      types.LSN
	data     *[PageSize]byte
}

// New wraps pre-loaded page bytes (e.g. just read from disk) in a frame.
func New(id types.PageID, data *[PageSize]byte) *Page {
	return &Page{id: id, pinCount: 1, isDirty: false, lsn: types.InvalidLSN, data: data}
}

// NewEmpty creates a zeroed frame for a freshly allocated page.
func NewEmpty(id types.PageID) *Page {
	return &Page{id: id, pinCount: 1, isDirty: false, lsn: types.InvalidLSN, data: &[PageSize]byte{}}
}

func (p *Page) ID() types.PageID {
	return p.id
}

func (p *Page) SetID(id types.PageID) {
	p.id = id
}

func (p *Page) IncPinCount() {
	p.pinCount++
}

func (p *Page) DecPinCount() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

func (p *Page) PinCount() int {
	return p.pinCount
}

func (p *Page) Data() *[PageSize]byte {
	return p.data
}

func (p *Page) SetIsDirty(isDirty bool) {
	p.isDirty = isDirty
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

func (p *Page) LSN() types.LSN {
	return p.lsn
}

func (p *Page) SetLSN(lsn types.LSN) {
	p.lsn = lsn
}

// ResetMemory zeroes the frame's bytes, used by log recovery to
// re-initialize the target page of a NEWPAGE record.
func (p *Page) ResetMemory() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// Copy writes src into the frame's bytes starting at offset.
func (p *Page) Copy(offset int, src []byte) {
	copy(p.data[offset:], src)
}
