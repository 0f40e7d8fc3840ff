package modcache

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"
)

// tinyModule returns the raw bytes of the smallest valid Wasm module: the
// preamble plus an empty type section, enough for wasm.Decode to succeed
// without pulling in pkg/wasm's own test helpers.
func tinyModule(salt byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x00asm")
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], 1)
	buf.Write(version[:])
	buf.WriteByte(1)    // type section id
	buf.WriteByte(1)    // section size
	buf.WriteByte(salt) // count byte, varied to change the content hash
	return buf.Bytes()
}

func TestKeyOfIsDeterministic(t *testing.T) {
	code := tinyModule(0)
	if KeyOf(code) != KeyOf(code) {
		t.Fatal("KeyOf is not deterministic for identical input")
	}
	if KeyOf(tinyModule(0)) == KeyOf(tinyModule(1)) {
		t.Fatal("KeyOf collided for different input")
	}
}

func TestInMemoryLookupCachesAcrossCalls(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	code := tinyModule(0)
	mod1, err := c.Lookup(code)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	mod2, err := c.Lookup(code)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if mod1 != mod2 {
		t.Fatal("second Lookup did not reuse the cached module")
	}
}

func TestLookupRejectsUndecodableCode(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, err := c.Lookup([]byte("not wasm")); err == nil {
		t.Fatal("expected an error decoding garbage input")
	}
}

func TestDiskBackedCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modcache")

	code := tinyModule(0)

	c1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c1.Lookup(code); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	mod, err := c2.Lookup(code)
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if len(mod.Types) != 0 {
		t.Fatalf("len(Types) = %d, want 0 for an empty type section", len(mod.Types))
	}
}

func TestCloseOnInMemoryCacheIsNoop(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on in-memory cache: %v", err)
	}
}
