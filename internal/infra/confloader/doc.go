// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader that supports multiple
// sources using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (TLSDIR_ prefix, "__" separates sections)
//  3. Configuration file (YAML)
//  4. Default values already present in the target struct
//
// Watcher reports writes to the configuration file so that the server can
// re-apply the settings that are safe to change at runtime.
package confloader
