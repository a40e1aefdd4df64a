// Package types provides core types used across the agenthive substrate.
// This package has ZERO dependencies on other agenthive packages to avoid
// circular imports. All other packages should import types from here.
package types
