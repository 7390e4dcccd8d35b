// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLParser_TopLevelKeysWithExactLineNumbers(t *testing.T) {
	src := `service:
  name: payments
  port: 8080
database:
  host: localhost
  port: 5432
`
	p := NewYAMLParser()
	result := p.Parse("config/app.yaml", "config/app.yaml", []byte(src), "repo-a")
	require.True(t, result.Success)

	var names []string
	var serviceStart int
	for _, c := range result.Chunks {
		names = append(names, c.ItemName)
		if c.ItemName == "service" {
			serviceStart = c.StartLine
		}
	}
	assert.Contains(t, names, "service")
	assert.Contains(t, names, "database")
	assert.Equal(t, 1, serviceStart)

	// RecurseOneLevel emits nested keys too.
	assert.Contains(t, names, "service.name")
	assert.Contains(t, names, "database.port")
}

func TestYAMLParser_InvalidYAMLFailsParse(t *testing.T) {
	src := "service: [unterminated\n"
	p := NewYAMLParser()
	result := p.Parse("config/bad.yaml", "config/bad.yaml", []byte(src), "repo-a")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestYAMLParser_NonMappingDocumentYieldsNoChunks(t *testing.T) {
	src := "- one\n- two\n- three\n"
	p := NewYAMLParser()
	result := p.Parse("config/list.yaml", "config/list.yaml", []byte(src), "repo-a")
	require.True(t, result.Success)
	assert.Empty(t, result.Chunks)
}

func TestHCLParser_ExtractsTopLevelBlocks(t *testing.T) {
	src := `resource "aws_instance" "web" {
  ami           = "ami-123"
  instance_type = "t3.micro"
}

variable "region" {
  default = "us-east-1"
}
`
	p := NewHCLParser()
	result := p.Parse("infra/main.tf", "infra/main.tf", []byte(src), "repo-a")
	require.True(t, result.Success)
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "resource.aws_instance.web", result.Chunks[0].ItemName)
	assert.Equal(t, "variable.region", result.Chunks[1].ItemName)
	for _, c := range result.Chunks {
		assert.Equal(t, "block", c.ItemType)
		assert.Equal(t, "hcl", c.Language)
	}
}

func TestHCLParser_UnbalancedBlockFailsWholeFile(t *testing.T) {
	src := `resource "aws_instance" "web" {
  ami = "ami-123"
`
	p := NewHCLParser()
	result := p.Parse("infra/broken.tf", "infra/broken.tf", []byte(src), "repo-a")
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Chunks)
}
