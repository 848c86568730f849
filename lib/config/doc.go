// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads hotswap configuration.
//
// Every field is optional. [Default] derives working values from the
// working directory: the module is named after the directory, sources
// are watched in place, and artifacts land in ./target. A config file
// only needs the fields it changes.
//
// The file is named by --config or the HOTSWAP_CONFIG environment
// variable and may be YAML (.yaml, .yml) or JSON with comments (.json,
// .jsonc). There is no search path: without either, defaults are used.
//
// Path fields support ${VAR} and ${VAR:-default} expansion. ${PWD}
// resolves to the working directory the defaults were derived from and
// ${MODULE} to the module name; other names come from the environment.
package config
