package xref

import (
	"strings"
	"testing"
	"time"
)

// buildClassic assembles a minimal two-object PDF with a well-formed
// classic xref table and returns it plus the object offsets.
func buildClassic(t *testing.T) ([]byte, map[int]int64) {
	t.Helper()
	var b strings.Builder
	offsets := make(map[int]int64)

	b.WriteString("%PDF-1.7\n")
	offsets[1] = int64(b.Len())
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(b.Len())
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOff := b.Len()
	b.WriteString("xref\n0 3\n")
	b.WriteString("0000000000 65535 f \n")
	writeEntry := func(off int64) {
		dec := itoa(int(off))
		b.WriteString(strings.Repeat("0", 10-len(dec)) + dec + " 00000 n \n")
	}
	writeEntry(offsets[1])
	writeEntry(offsets[2])
	b.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(itoa(xrefOff))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String()), offsets
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var out []byte
	for v > 0 {
		out = append([]byte{byte('0' + v%10)}, out...)
		v /= 10
	}
	return string(out)
}

func TestResolveClassicTable(t *testing.T) {
	data, offsets := buildClassic(t)
	table, err := Resolve(data)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for num, want := range offsets {
		e, ok := table.Lookup(num)
		if !ok {
			t.Fatalf("object %d missing", num)
		}
		if e.Offset != want {
			t.Errorf("object %d: offset %d, want %d", num, e.Offset, want)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Error("free entry 0 should not resolve")
	}
	if table.Trailer == nil || table.Trailer.Int("Size") != 3 {
		t.Errorf("trailer not parsed: %+v", table.Trailer)
	}
	if got := table.Objects(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Objects() = %v", got)
	}
}

func TestResolveMissingStartxref(t *testing.T) {
	if _, err := Resolve([]byte("%PDF-1.7\nno cross reference here")); err == nil {
		t.Fatal("want error for missing startxref")
	}
}

func TestResolveOffsetOutOfRange(t *testing.T) {
	if _, err := Resolve([]byte("startxref\n99999\n%%EOF")); err == nil {
		t.Fatal("want error for out-of-range offset")
	}
}

func TestRepairFindsObjects(t *testing.T) {
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Count 0 /Kids [] >>\nendobj\n" +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
		"startxref\n0\n%%EOF\n")
	table, err := Repair(data)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if _, ok := table.Lookup(1); !ok {
		t.Error("object 1 not found")
	}
	if _, ok := table.Lookup(2); !ok {
		t.Error("object 2 not found")
	}
	if table.Trailer.Int("Size") != 3 {
		t.Errorf("trailer Size = %d", table.Trailer.Int("Size"))
	}
}

func TestRepairLaterDefinitionWins(t *testing.T) {
	// Incremental updates redefine objects; the later offset must win.
	data := []byte("3 0 obj\n<< /A 1 >>\nendobj\n" +
		"3 0 obj\n<< /A 2 >>\nendobj\n")
	table, err := Repair(data)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	e, ok := table.Lookup(3)
	if !ok {
		t.Fatal("object 3 not found")
	}
	if e.Offset == 0 {
		t.Errorf("later definition should win, got offset %d", e.Offset)
	}
}

func TestRepairSkipsStreamPayload(t *testing.T) {
	// "7 0 obj" inside stream data must not register as an object.
	data := []byte("4 0 obj\n<< /Length 9 >>\nstream\n7 0 obj\nx\nendstream\nendobj\n")
	table, err := Repair(data)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if _, ok := table.Lookup(4); !ok {
		t.Error("object 4 not found")
	}
	if _, ok := table.Lookup(7); ok {
		t.Error("stream payload leaked an object header")
	}
}

func TestRepairNoObjects(t *testing.T) {
	if _, err := Repair([]byte("just text")); err == nil {
		t.Fatal("want error when no objects found")
	}
}

func TestRepairSkipsMalformedNumberBytes(t *testing.T) {
	// A bare sign or dot is a number-start byte the scanner rejects without
	// consuming; the repair scan must still make progress past it.
	data := []byte("1 0 obj\n<< /Type /Catalog >>\nendobj\n.\n+ -\n" +
		"2 0 obj\n<< /Type /Pages >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n")

	done := make(chan struct{})
	var table *Table
	var err error
	go func() {
		table, err = Repair(data)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Repair did not terminate on malformed number bytes")
	}
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if _, ok := table.Lookup(1); !ok {
		t.Error("object 1 not found")
	}
	if _, ok := table.Lookup(2); !ok {
		t.Error("object 2 after the garbage not found")
	}
	if table.Trailer == nil {
		t.Error("trailer after the garbage not parsed")
	}
}
