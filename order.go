package ldfcache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// BuildOrder holds the two ordered lists derived from a compile ledger:
// the compile order (source to object, in invocation order) and the link
// order (the object paths projected in the same sequence). Element i of
// LinkOrder is always the ObjectPath of element i of CompileOrder.
type BuildOrder struct {
	CompileOrder []CompileRecord `json:"compileOrder"`
	LinkOrder    []string        `json:"linkOrder"`
}

// Resolve derives the build order from a ledger. The projection is pure:
// no reordering, no filtering beyond what the ledger builder already did.
//
// A ledger with zero compile records fails: the orchestrator must treat it
// as a build failure, never as a valid cache-worthy state.
func Resolve(ledger *Ledger) (*BuildOrder, error) {
	if ledger == nil || len(ledger.Records) == 0 {
		return nil, stageErr(StageOrder, "", fmt.Errorf("%w: ledger has no compile records", ErrParse))
	}

	order := &BuildOrder{
		CompileOrder: ledger.Records,
		LinkOrder:    make([]string, len(ledger.Records)),
	}
	for i, record := range ledger.Records {
		order.LinkOrder[i] = record.ObjectPath
	}

	return order, nil
}

// WriteOrderFiles persists the build order as two plain-text files in dir:
// the ordered source list and the ordered object list, one path per line.
// These are consumed by the external build/link step as the ground truth
// ordering instead of whatever glob order the host tool would use.
// It returns the paths of the two files.
func (bo *BuildOrder) WriteOrderFiles(fs afero.Fs, dir, target string) (string, string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", "", stageErr(StageOrder, dir, err)
	}

	sources := make([]string, len(bo.CompileOrder))
	for i, record := range bo.CompileOrder {
		sources[i] = record.SourcePath
	}

	buildOrderPath := filepath.Join(dir, fmt.Sprintf("build_order_%s.txt", target))
	linkOrderPath := filepath.Join(dir, fmt.Sprintf("link_order_%s.txt", target))

	if err := writeLines(fs, buildOrderPath, sources); err != nil {
		return "", "", stageErr(StageOrder, buildOrderPath, err)
	}
	if err := writeLines(fs, linkOrderPath, bo.LinkOrder); err != nil {
		return "", "", stageErr(StageOrder, linkOrderPath, err)
	}

	return buildOrderPath, linkOrderPath, nil
}

// writeLines writes one path per line.
func writeLines(fs afero.Fs, path string, lines []string) error {
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return afero.WriteFile(fs, path, []byte(buf.String()), 0o644)
}
