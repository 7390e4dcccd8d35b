// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTSFamilyParser_TypeScriptDeclarations(t *testing.T) {
	src := `import { Foo } from "./foo";

export interface Widget {
  id: string;
}

export type WidgetID = string;

export function createWidget(id: WidgetID): Widget {
  return { id };
}

export class WidgetStore {
  widgets: Widget[] = [];
}

const MAX_WIDGETS = 10;
`
	p := NewTSFamilyParser()
	result := p.Parse("src/widgets.ts", "src/widgets.ts", []byte(src), "repo-a")
	require.True(t, result.Success)

	byType := map[string][]string{}
	for _, c := range result.Chunks {
		byType[c.ItemType] = append(byType[c.ItemType], c.ItemName)
		assert.Equal(t, "typescript", c.Language)
		assert.Contains(t, c.Metadata["imports"], "Foo")
	}
	assert.Contains(t, byType["interface"], "Widget")
	assert.Contains(t, byType["type_alias"], "WidgetID")
	assert.Contains(t, byType["function"], "createWidget")
	assert.Contains(t, byType["class"], "WidgetStore")
	assert.Contains(t, byType["constant"], "MAX_WIDGETS")
}

func TestTSFamilyParser_ReactComponentHeuristicInTSX(t *testing.T) {
	src := `export function Button(props) {
  return <button onClick={props.onClick}>{props.label}</button>;
}

function helper() {
  return 1;
}
`
	p := NewTSFamilyParser()
	result := p.Parse("src/Button.tsx", "src/Button.tsx", []byte(src), "repo-a")
	require.True(t, result.Success)

	var buttonSeen, helperSeen bool
	for _, c := range result.Chunks {
		if c.ItemName == "Button" {
			buttonSeen = true
			assert.Equal(t, "true", c.Metadata["is_react_component"])
		}
		if c.ItemName == "helper" {
			helperSeen = true
			assert.Empty(t, c.Metadata["is_react_component"])
		}
	}
	assert.True(t, buttonSeen)
	assert.True(t, helperSeen)
}

func TestTSFamilyParser_PlainJavaScriptDispatch(t *testing.T) {
	src := `function add(a, b) {
  return a + b;
}
`
	p := NewTSFamilyParser()
	result := p.Parse("src/math.js", "src/math.js", []byte(src), "repo-a")
	require.True(t, result.Success)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "javascript", result.Chunks[0].Language)
	assert.Equal(t, "false", result.Chunks[0].Metadata["is_ts"])
}
