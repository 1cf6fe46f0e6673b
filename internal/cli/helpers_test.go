package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const adderYAML = `id: Adder
modules:
  - id: add
    ports:
      - {dir: input, name: a, type: "UInt<32>"}
      - {dir: input, name: b, type: "UInt<32>"}
      - {dir: output, name: c, type: "UInt"}
    body:
      - node: {name: c, value: {op: add, args: [{ref: a}, {ref: b}]}}
`

const counterYAML = `id: counter
modules:
  - id: counter
    ports:
      - {dir: input, name: clk, type: Clock}
      - {dir: input, name: rst, type: "UInt<1>"}
      - {dir: output, name: count, type: "UInt<8>"}
    body:
      - reg:
          name: r
          type: "UInt<8>"
          clock: {ref: clk}
          reset: {ref: rst}
          init: {lit: {type: "UInt<8>", value: "0"}}
      - connect:
          dst: {ref: r}
          src: {op: add, args: [{ref: r}, {lit: {type: "UInt<8>", value: "1"}}]}
      - connect: {dst: {ref: count}, src: {ref: r}}
`

const brokenYAML = `id: Broken
modules:
  - id: broken
    ports:
      - {dir: input, name: a, type: "UInt<8>"}
      - {dir: output, name: o, type: "UInt<8>"}
    body:
      - node: {name: n, value: {op: add, args: [{ref: a}, {ref: missing}]}}
        pos: {file: broken.fir, line: 3, col: 5}
      - connect: {dst: {ref: o}, src: {ref: a}}
`

const portlessYAML = `id: Portless
modules:
  - id: portless
    ports: []
    body:
      - node: {name: x, value: {lit: {type: "UInt<4>", value: "1"}}}
`

const malformedYAML = `id: Malformed
modules:
  - id: bad
    ports:
      - {dir: input, name: a, type: "UInt<4>"}
    body:
      - wire: {name: "w x", type: "UInt<4>"}
  - id: broken
    ports:
      - {dir: output, name: o, type: "UInt<8>"}
    body:
      - node: {name: n, value: {ref: missing}}
      - connect: {dst: {ref: o}, src: {lit: {type: "UInt<8>", value: "0"}}}
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
