// Package output renders CLI results for tlsdir.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned FIELD/VALUE tables with dotted keys for nesting
//   - json.go: indented JSON
//   - yaml.go: YAML via gopkg.in/yaml.v3
package output
