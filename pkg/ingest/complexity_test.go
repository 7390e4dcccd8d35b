// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexityScore_SimpleFunctionIsLow(t *testing.T) {
	score := ComplexityScore("fn add(a: i32, b: i32) -> i32 {\n    a + b\n}")
	assert.Less(t, score, 0.2)
}

func TestComplexityScore_BranchyNestedFunctionIsHigher(t *testing.T) {
	branchy := `fn classify(x: i32) -> &str {
    if x > 0 {
        if x > 10 {
            for i in 0..x {
                match i {
                    0 => println!("zero"),
                    _ => if i % 2 == 0 && i > 1 { println!("even") } else { println!("odd") },
                }
            }
        }
    }
    "done"
}`
	simple := ComplexityScore("fn noop() {}")
	complex := ComplexityScore(branchy)
	assert.Greater(t, complex, simple)
}

func TestComplexityScore_AlwaysClamped(t *testing.T) {
	huge := strings.Repeat("if a && b || c {\n\t\t\t\t\t\n", 500)
	score := ComplexityScore(huge)
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestIndentLevel(t *testing.T) {
	assert.Equal(t, 0, indentLevel("fn main() {}"))
	assert.Equal(t, 1, indentLevel("\tfoo()"))
	assert.Equal(t, 1, indentLevel("  foo()"))
	assert.Equal(t, 2, indentLevel("    foo()"))
}
