package ldfcache

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func TestBuildLedgerCompileOrder(t *testing.T) {
	records := []CommandRecord{
		{File: "a.cpp", Command: "cc -c a.cpp -o a.o"},
		{File: "b.cpp", Command: "cc -c b.cpp -o b.o"},
	}

	ledger, err := BuildLedger(records)
	if err != nil {
		t.Fatalf("Failed to build ledger: %v", err)
	}

	if len(ledger.Records) != 2 {
		t.Fatalf("Expected 2 compile records, got %d", len(ledger.Records))
	}
	if ledger.Dropped != 0 {
		t.Fatalf("Expected 0 dropped records, got %d", ledger.Dropped)
	}

	first, second := ledger.Records[0], ledger.Records[1]
	if first.Sequence != 1 || first.SourcePath != "a.cpp" || first.ObjectPath != "a.o" {
		t.Fatalf("Unexpected first record: %+v", first)
	}
	if second.Sequence != 2 || second.SourcePath != "b.cpp" || second.ObjectPath != "b.o" {
		t.Fatalf("Unexpected second record: %+v", second)
	}
}

func TestBuildLedgerDropsNonCompileRecords(t *testing.T) {
	records := []CommandRecord{
		{File: "a.cpp", Command: "cc -c a.cpp -o a.o"},
		{File: "b.cpp", Command: "cc -c b.cpp -o b.o"},
		// The link step names an elf output, not an object: dropped.
		{File: "firmware.elf", Command: "cc a.o b.o -o firmware.elf"},
		// An archive step has no object output either.
		{File: "libfoo.a", Command: "ar rcs libfoo.a a.o b.o"},
	}

	ledger, err := BuildLedger(records)
	if err != nil {
		t.Fatalf("Failed to build ledger: %v", err)
	}

	if len(ledger.Records) != 2 {
		t.Fatalf("Expected 2 compile records, got %d", len(ledger.Records))
	}
	if ledger.Dropped != 2 {
		t.Fatalf("Expected 2 dropped records, got %d", ledger.Dropped)
	}

	// Sequence numbers stay strictly increasing across drops.
	for i, record := range ledger.Records {
		if record.Sequence != i+1 {
			t.Fatalf("Expected sequence %d, got %d", i+1, record.Sequence)
		}
	}
}

func TestBuildLedgerEmptyInput(t *testing.T) {
	_, err := BuildLedger(nil)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("Expected ErrParse for empty input, got %v", err)
	}
}

func TestBuildLedgerFlagExtraction(t *testing.T) {
	records := []CommandRecord{
		{
			File: "main.cpp",
			Command: "g++ -DNDEBUG -D ESP32 -I/sdk/include -I lib/core " +
				"-O2 -Wall -fno-exceptions -mlongcalls -c main.cpp -o build/main.o",
		},
	}

	ledger, err := BuildLedger(records)
	if err != nil {
		t.Fatalf("Failed to build ledger: %v", err)
	}

	record := ledger.Records[0]
	if record.ObjectPath != "build/main.o" {
		t.Fatalf("Expected object build/main.o, got %s", record.ObjectPath)
	}

	assertStringsEqual(t, record.IncludePaths, []string{"/sdk/include", "lib/core"}, "IncludePaths")
	assertStringsEqual(t, record.Defines, []string{"ESP32", "NDEBUG"}, "Defines")
	assertStringsEqual(t, record.OtherFlags,
		[]string{"-O2", "-Wall", "-fno-exceptions", "-mlongcalls"}, "OtherFlags")
}

func TestBuildLedgerDeduplicatesFlags(t *testing.T) {
	records := []CommandRecord{
		{File: "a.c", Command: "cc -I/inc -I/inc -DFOO -DFOO -O2 -O2 -c a.c -o a.o"},
	}

	ledger, err := BuildLedger(records)
	if err != nil {
		t.Fatalf("Failed to build ledger: %v", err)
	}

	record := ledger.Records[0]
	assertStringsEqual(t, record.IncludePaths, []string{"/inc"}, "IncludePaths")
	assertStringsEqual(t, record.Defines, []string{"FOO"}, "Defines")
	assertStringsEqual(t, record.OtherFlags, []string{"-O2"}, "OtherFlags")
}

func TestLoadCompileCommands(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/compile_commands.json", []byte(`[
		{"directory": "/proj", "file": "a.cpp", "command": "cc -c a.cpp -o a.o"},
		{"directory": "/proj", "file": "b.cpp", "command": "cc -c b.cpp -o b.o"},
		{"directory": "/proj", "file": "weird.cpp"}
	]`))

	records, err := LoadCompileCommands(memFs, "/proj/compile_commands.json")
	if err != nil {
		t.Fatalf("Failed to load compile commands: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].File != "a.cpp" || records[0].Command != "cc -c a.cpp -o a.o" {
		t.Fatalf("Unexpected first record: %+v", records[0])
	}

	// The command-less entry survives loading and is dropped by the
	// ledger builder.
	ledger, err := BuildLedger(records)
	if err != nil {
		t.Fatalf("Failed to build ledger: %v", err)
	}
	if len(ledger.Records) != 2 || ledger.Dropped != 1 {
		t.Fatalf("Expected 2 records and 1 dropped, got %d and %d",
			len(ledger.Records), ledger.Dropped)
	}
}

func TestLoadCompileCommandsNotArray(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/compile_commands.json", []byte(`{"file": "a.cpp"}`))

	_, err := LoadCompileCommands(memFs, "/proj/compile_commands.json")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("Expected ErrParse for non-array input, got %v", err)
	}
}

func TestLoadCompileCommandsMissingFile(t *testing.T) {
	memFs := afero.NewMemMapFs()

	_, err := LoadCompileCommands(memFs, "/proj/compile_commands.json")
	if err == nil {
		t.Fatal("Expected error for a missing file, got nil")
	}
}
