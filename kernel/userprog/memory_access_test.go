package userprog

import (
	"bytes"
	"errors"
	"testing"
)

func TestVirtualMemory_StopsAtInvalidPage(t *testing.T) {
	k := newTestKernel(t, nil)
	pageSize := k.Machine().PageSize()

	var written, read, readOnlyWritten int
	var data []byte

	err := k.RunWith(func() {
		p := NewUserProcess(k.UserKernel)
		pageTable, err := k.Pages().Acquire(3)
		if err != nil {
			t.Errorf("Expected pages, got %v", err)
			return
		}
		p.pageTable = pageTable
		p.numPages = 3
		p.pageTable[1].Valid = false
		p.pageTable[2].ReadOnly = true

		payload := bytes.Repeat([]byte{0xab}, 200)
		written = p.WriteVirtualMemory(pageSize-100, payload)

		data = make([]byte, 200)
		read = p.ReadVirtualMemory(pageSize-100, data)

		readOnlyWritten = p.WriteVirtualMemory(2*pageSize, []byte{1, 2, 3})

		p.discard()
	})
	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}

	if written != 100 {
		t.Errorf("Expected write to stop after 100 bytes, got %d", written)
	}
	if read != 100 {
		t.Errorf("Expected read to stop after 100 bytes, got %d", read)
	}
	if !bytes.Equal(data[:100], bytes.Repeat([]byte{0xab}, 100)) {
		t.Errorf("Expected the first 100 bytes to be read back, got %x", data[:100])
	}
	if readOnlyWritten != 0 {
		t.Errorf("Expected no bytes written to a read-only page, got %d", readOnlyWritten)
	}
	if k.Pages().Free() != k.Machine().NumPhysPages() {
		t.Errorf("Expected every frame to be free, got %d", k.Pages().Free())
	}
}

func TestVirtualMemory_OutOfRange(t *testing.T) {
	k := newTestKernel(t, nil)

	var negative, beyond int
	err := k.RunWith(func() {
		p := NewUserProcess(k.UserKernel)
		pageTable, _ := k.Pages().Acquire(1)
		p.pageTable = pageTable
		p.numPages = 1

		negative = p.ReadVirtualMemory(-1, make([]byte, 4))
		beyond = p.WriteVirtualMemory(k.Machine().PageSize(), []byte{1})
		p.discard()
	})
	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}

	if negative != 0 || beyond != 0 {
		t.Errorf("Expected 0 bytes for addresses outside the process, got %d and %d", negative, beyond)
	}
}

func TestReadVirtualMemoryString(t *testing.T) {
	k := newTestKernel(t, nil)
	pageSize := k.Machine().PageSize()

	var short, truncated, crossing string
	var shortOK, truncatedOK, crossingOK bool

	err := k.RunWith(func() {
		p := NewUserProcess(k.UserKernel)
		pageTable, _ := k.Pages().Acquire(2)
		p.pageTable = pageTable
		p.numPages = 2

		p.WriteVirtualMemory(0, []byte("nachos\x00"))
		short, shortOK = p.ReadVirtualMemoryString(0, 256)
		truncated, truncatedOK = p.ReadVirtualMemoryString(0, 3)

		p.WriteVirtualMemory(pageSize-3, []byte("entre\x00"))
		crossing, crossingOK = p.ReadVirtualMemoryString(pageSize-3, 256)

		p.discard()
	})
	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}

	if !shortOK || short != "nachos" {
		t.Errorf("Expected 'nachos', got %q (%v)", short, shortOK)
	}
	if truncatedOK || truncated != "" {
		t.Errorf("Expected no string when the terminator is past the limit, got %q (%v)", truncated, truncatedOK)
	}
	if !crossingOK || crossing != "entre" {
		t.Errorf("Expected 'entre' across the page boundary, got %q (%v)", crossing, crossingOK)
	}
}

func TestPageAllocator_AllOrNothing(t *testing.T) {
	k := newTestKernel(t, nil)
	total := k.Machine().NumPhysPages()

	var firstErr, tooManyErr error
	var freeAfterFailure int
	var ppns []int

	err := k.RunWith(func() {
		first, err := k.Pages().Acquire(total - 2)
		firstErr = err

		_, tooManyErr = k.Pages().Acquire(3)
		freeAfterFailure = k.Pages().Free()

		k.Pages().Release(first[:4])
		again, _ := k.Pages().Acquire(4)
		for i, entry := range again {
			if entry.VPN != i || !entry.Valid {
				t.Errorf("Expected valid entry with vpn %d, got %+v", i, entry)
			}
			ppns = append(ppns, entry.PPN)
		}
	})
	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}

	if firstErr != nil {
		t.Errorf("Expected first acquire to succeed, got %v", firstErr)
	}
	if !errors.Is(tooManyErr, ErrInadequatePages) {
		t.Errorf("Expected ErrInadequatePages, got %v", tooManyErr)
	}
	if freeAfterFailure != 2 {
		t.Errorf("Expected a failed acquire to keep 2 free frames, got %d", freeAfterFailure)
	}
	if len(ppns) != 4 || ppns[0] != 0 || ppns[3] != 3 {
		t.Errorf("Expected released frames 0..3 to be reused, got %v", ppns)
	}
}

func TestFileReferences(t *testing.T) {
	k := newTestKernel(t, nil)

	type snapshot struct {
		refs    int
		pending bool
		ok      bool
	}
	var afterTwo, afterDelete snapshot
	var refused bool
	var lastClose, deleteUnopened int
	var gone bool

	err := k.RunWith(func() {
		fs := k.Machine().FileSystem()
		for _, name := range []string{"a.txt", "b.txt"} {
			f, err := fs.Open(name, true)
			if err != nil {
				t.Errorf("Expected %s to be created, got %v", name, err)
				return
			}
			f.Close()
		}

		files := k.Files()
		files.Reference("a.txt")
		files.Reference("a.txt")
		afterTwo.refs, afterTwo.pending, afterTwo.ok = files.Lookup("a.txt")

		files.Delete("a.txt")
		afterDelete.refs, afterDelete.pending, afterDelete.ok = files.Lookup("a.txt")
		refused = !files.Reference("a.txt")

		files.Unreference("a.txt")
		lastClose = files.Unreference("a.txt")
		_, _, present := files.Lookup("a.txt")
		_, openErr := fs.Open("a.txt", false)
		gone = !present && openErr != nil

		deleteUnopened = files.Delete("b.txt")
	})
	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}

	if afterTwo != (snapshot{refs: 2, ok: true}) {
		t.Errorf("Expected 2 references and no pending delete, got %+v", afterTwo)
	}
	if afterDelete != (snapshot{refs: 2, pending: true, ok: true}) {
		t.Errorf("Expected pending delete with 2 references, got %+v", afterDelete)
	}
	if !refused {
		t.Error("Expected a reference to a file pending deletion to be refused")
	}
	if lastClose != 0 || !gone {
		t.Errorf("Expected the last close to remove the file, got %d (gone=%v)", lastClose, gone)
	}
	if deleteUnopened != 0 {
		t.Errorf("Expected deleting an unopened file to succeed, got %d", deleteUnopened)
	}
}
