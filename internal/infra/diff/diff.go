// Package diff renders git-style unified diffs on top of sergi/go-diff.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

type opKind int

const (
	opEqual opKind = iota
	opAdd
	opRemove
)

type op struct {
	kind opKind
	text string
}

// Result is a rendered diff plus its line stats.
type Result struct {
	Text    string
	Added   int
	Removed int
}

// Unified diffs oldContent against newContent for path. Empty old content is
// rendered as a new file and empty new content as a deletion.
func Unified(path, oldContent, newContent string) Result {
	ops := lineOps(oldContent, newContent)

	var res Result
	for _, o := range ops {
		switch o.kind {
		case opAdd:
			res.Added++
		case opRemove:
			res.Removed++
		}
	}
	if res.Added == 0 && res.Removed == 0 {
		return res
	}

	path = strings.TrimPrefix(strings.ReplaceAll(path, `\`, "/"), "/")
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	switch {
	case oldContent == "":
		b.WriteString("new file mode 100644\n--- /dev/null\n")
		fmt.Fprintf(&b, "+++ b/%s\n", path)
	case newContent == "":
		b.WriteString("deleted file mode 100644\n")
		fmt.Fprintf(&b, "--- a/%s\n+++ /dev/null\n", path)
	default:
		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	}
	writeHunks(&b, ops)

	res.Text = b.String()
	return res
}

func lineOps(oldContent, newContent string) []op {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	ops := make([]op, 0, len(diffs))
	for _, d := range diffs {
		kind := opEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = opAdd
		case diffmatchpatch.DiffDelete:
			kind = opRemove
		}
		parts := strings.Split(d.Text, "\n")
		if parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		for _, p := range parts {
			ops = append(ops, op{kind: kind, text: p})
		}
	}
	return ops
}

// writeHunks groups changes with up to contextLines of surrounding context,
// merging groups whose context overlaps.
func writeHunks(b *strings.Builder, ops []op) {
	// line numbers consumed before each op
	oldBefore := make([]int, len(ops)+1)
	newBefore := make([]int, len(ops)+1)
	for i, o := range ops {
		oldBefore[i+1], newBefore[i+1] = oldBefore[i], newBefore[i]
		if o.kind != opAdd {
			oldBefore[i+1]++
		}
		if o.kind != opRemove {
			newBefore[i+1]++
		}
	}

	type span struct{ start, end int }
	var spans []span
	for i, o := range ops {
		if o.kind == opEqual {
			continue
		}
		start := max(0, i-contextLines)
		end := min(len(ops), i+contextLines+1)
		if n := len(spans); n > 0 && start <= spans[n-1].end {
			spans[n-1].end = max(spans[n-1].end, end)
			continue
		}
		spans = append(spans, span{start, end})
	}

	for _, s := range spans {
		oldCount := oldBefore[s.end] - oldBefore[s.start]
		newCount := newBefore[s.end] - newBefore[s.start]
		fmt.Fprintf(b, "@@ -%s +%s @@\n",
			hunkRange(oldBefore[s.start], oldCount),
			hunkRange(newBefore[s.start], newCount),
		)
		for _, o := range ops[s.start:s.end] {
			switch o.kind {
			case opAdd:
				b.WriteByte('+')
			case opRemove:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(o.text)
			b.WriteByte('\n')
		}
	}
}

func hunkRange(before, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", before)
	}
	return fmt.Sprintf("%d,%d", before+1, count)
}
