// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolidityParser_ContractWithFunctionsAndStateVars(t *testing.T) {
	src := `pragma solidity ^0.8.0;

contract Token {
    uint256 public totalSupply;

    constructor(uint256 supply) {
        totalSupply = supply;
    }

    function transfer(address to, uint256 amount) public returns (bool) {
        return true;
    }

    event Transfer(address indexed from, address indexed to, uint256 value);
}
`
	p := NewSolidityParser()
	result := p.Parse("contracts/Token.sol", "contracts/Token.sol", []byte(src), "repo-a")
	require.True(t, result.Success)

	var types []string
	var names []string
	for _, c := range result.Chunks {
		types = append(types, c.ItemType)
		names = append(names, c.ItemName)
	}
	assert.Contains(t, types, "contract")
	assert.Contains(t, types, "constructor")
	assert.Contains(t, types, "function")
	assert.Contains(t, types, "event")
	assert.Contains(t, types, "state_variable")
	assert.Contains(t, names, "Token")
	assert.Contains(t, names, "transfer")

	for _, c := range result.Chunks {
		if c.ItemName == "transfer" {
			assert.Equal(t, "public", c.Metadata["visibility"])
		}
	}
}

func TestSolidityParser_UnbalancedBracesFailsWholeFile(t *testing.T) {
	src := `contract Broken {
    function oops() public {
        // never closed
`
	p := NewSolidityParser()
	result := p.Parse("contracts/Broken.sol", "contracts/Broken.sol", []byte(src), "repo-a")
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Chunks)
}

func TestSolidityParser_NoDeclarationsYieldsNoChunks(t *testing.T) {
	src := "pragma solidity ^0.8.0;\n// nothing else here\n"
	p := NewSolidityParser()
	result := p.Parse("contracts/Empty.sol", "contracts/Empty.sol", []byte(src), "repo-a")
	require.True(t, result.Success)
	assert.Empty(t, result.Chunks)
}
