package ldfcache

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// CommandRecord is one entry of a compile-commands export: the source file
// and the full compiler command line that was invoked for it.
type CommandRecord struct {
	File    string `json:"file"`
	Command string `json:"command"`
}

// CompileRecord describes a single per-file compiler invocation extracted
// from a command record. Sequence is the 1-based position in which the
// build tool emitted the compilation; sequence values are unique and
// strictly increasing within one ledger.
type CompileRecord struct {
	Sequence     int      `json:"sequence"`
	SourcePath   string   `json:"sourcePath"`
	ObjectPath   string   `json:"objectPath"`
	IncludePaths []string `json:"includePaths"`
	Defines      []string `json:"defines"`
	OtherFlags   []string `json:"otherFlags"`
	RawCommand   string   `json:"rawCommand"`
}

// Ledger is the ordered record of compiler invocations parsed from
// compile-command data. The record order is the authoritative compile
// order: it reflects the order the host build system actually invoked the
// compiler. Dropped counts input records without a recognizable
// object-output flag, typically the final link invocation.
type Ledger struct {
	Records []CompileRecord `json:"records"`
	Dropped int             `json:"dropped"`
}

// Flag extraction patterns. A record counts as a per-file compile only if
// its command names an object output via the compiler output flag; all
// other records (link or archive steps) are dropped and counted.
var (
	objectOutputRe = regexp.MustCompile(`-o\s+(\S+\.o)\b`)
	includePathRe  = regexp.MustCompile(`-I\s*(\S+)`)
	defineRe       = regexp.MustCompile(`-D\s*(\S+)`)
	otherFlagRe    = regexp.MustCompile(`(-[fmWO]\S*)`)
)

// BuildLedger extracts a structured compile ledger from command records,
// preserving the input order as the authoritative compile order.
//
// An empty input fails with ErrParse rather than producing an empty
// ledger: an empty order must never be mistaken for a cache-worthy result.
func BuildLedger(records []CommandRecord) (*Ledger, error) {
	if len(records) == 0 {
		return nil, stageErr(StageLedger, "", fmt.Errorf("%w: no compile records", ErrParse))
	}

	ledger := &Ledger{}
	seq := 0

	for _, record := range records {
		match := objectOutputRe.FindStringSubmatch(record.Command)
		if match == nil {
			ledger.Dropped++
			continue
		}

		seq++
		ledger.Records = append(ledger.Records, CompileRecord{
			Sequence:     seq,
			SourcePath:   record.File,
			ObjectPath:   match[1],
			IncludePaths: extractAll(includePathRe, record.Command),
			Defines:      extractAll(defineRe, record.Command),
			OtherFlags:   extractAll(otherFlagRe, record.Command),
			RawCommand:   record.Command,
		})
	}

	return ledger, nil
}

// LoadCompileCommands reads a compile_commands.json export and returns its
// records in file order. Entries lacking a command survive loading and are
// dropped later by BuildLedger. Fails with ErrParse if the file is not a
// JSON array.
func LoadCompileCommands(fs afero.Fs, path string) ([]CommandRecord, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, stageErr(StageLedger, path, err)
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, stageErr(StageLedger, path, fmt.Errorf("%w: not a JSON array", ErrParse))
	}

	var records []CommandRecord
	for _, entry := range parsed.Array() {
		records = append(records, CommandRecord{
			File:    entry.Get("file").String(),
			Command: entry.Get("command").String(),
		})
	}

	return records, nil
}

// extractAll returns the deduplicated, sorted submatches of re in command.
// Sets are stored sorted so serialized ledgers stay deterministic.
func extractAll(re *regexp.Regexp, command string) []string {
	matches := re.FindAllStringSubmatch(command, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var values []string
	for _, match := range matches {
		value := match[1]
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}

	sort.Strings(values)
	return values
}
