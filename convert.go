// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"fmt"
	"strconv"
	"strings"
)

// The file-to-file numeric conversion pipeline. The engine below treats
// all of this as policy: a filter predicate, a parse, an opaque pure
// mapping, and a fixed formatting rule.

// KeepDataLine reports whether a line carries data: it is dropped when
// empty, whitespace-only, or starting with the two-character comment
// marker "//".
func KeepDataLine(line string) bool {
	if strings.HasPrefix(line, "//") {
		return false
	}
	return strings.TrimSpace(line) != ""
}

// ParseDecimal parses a surviving line as a decimal number.
func ParseDecimal(line string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("flume: line %q is not a decimal number: %w", line, err)
	}
	return v, nil
}

// FormatDecimal renders v as the shortest decimal string that parses
// back to exactly v, in fixed (non-exponent) notation. One deterministic
// rule, applied everywhere.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ConvertNumbersFile builds the complete conversion pipeline:
// read inPath in chunkSize batches, decode UTF-8, split lines, drop
// blank and comment lines, parse each survivor as a decimal number,
// apply convert, format, join with single newlines (no trailing
// newline), encode, and write to outPath.
//
// The returned task performs no work until run. On failure, bytes
// already flushed to outPath remain on disk, but both file handles are
// closed on every path.
func ConvertNumbersFile(
	inPath, outPath string,
	chunkSize int,
	convert func(float64) float64,
	pool *BlockingPool,
	opts ...CompileOption,
) Task[Nothing] {
	stage := ComposePipes(DecodeUTF8(), SplitLines())
	lines := Through(Source(inPath, chunkSize, pool), stage)
	kept := Through(lines, FilterPipe(KeepDataLine))
	values := Through(kept, TryMapPipe(ParseDecimal))
	converted := Through(values, MapPipe(convert))
	formatted := Through(converted, MapPipe(FormatDecimal))
	joined := Through(formatted, Intersperse("\n"))
	encoded := Through(joined, EncodeUTF8())
	written := Through(encoded, Sink(outPath, pool))
	return DrainStream(written, opts...)
}
