package swapfile

import (
	"os"
	"sync"

	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
)

/// quarter is the chunk size swap I/O is split into: PAGE_SIZE/4, matching
/// the original swap code's SWAP_BUF_SIZE.
const quarter = mem.PGSIZE / 4

/// File_t is the block-file backend a swap-slot table reads and writes
/// through (component 4.4's external collaborator). Backed by a regular
/// os.File rather than a raw block device, since this module runs as a
/// normal process rather than inside a kernel with its own disk driver.
type File_t struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

/// Create opens (creating if necessary) the backing file at path.
func Create(path string) (*File_t, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	return &File_t{f: f, path: path}, nil
}

/// Close releases the backing file without removing it from disk, for
/// callers that only want to stop using the handle.
func (sf *File_t) Close() error {
	return sf.f.Close()
}

/// Destroy closes the backing file and removes it from disk. This is the
/// only persisted artifact the subsystem owns, and it has no reason to
/// outlive the process (or the exec) that created it.
func (sf *File_t) Destroy() error {
	cerr := sf.f.Close()
	if rerr := os.Remove(sf.path); rerr != nil {
		return rerr
	}
	return cerr
}

/// WritePage writes a full page to the file at the given byte offset, one
/// quarter-page at a time.
func (sf *File_t) WritePage(offset int64, page []byte) defs.Err_t {
	if len(page) != mem.PGSIZE {
		panic("writepage: short page")
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	for i := 0; i < 4; i++ {
		chunk := page[i*quarter : (i+1)*quarter]
		if _, err := sf.f.WriteAt(chunk, offset+int64(i*quarter)); err != nil {
			return -defs.EIO
		}
	}
	return 0
}

/// ReadPage reads a full page from the file at the given byte offset, one
/// quarter-page at a time.
func (sf *File_t) ReadPage(offset int64, page []byte) defs.Err_t {
	if len(page) != mem.PGSIZE {
		panic("readpage: short page")
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	for i := 0; i < 4; i++ {
		chunk := page[i*quarter : (i+1)*quarter]
		if _, err := sf.f.ReadAt(chunk, offset+int64(i*quarter)); err != nil {
			return -defs.EIO
		}
	}
	return 0
}
