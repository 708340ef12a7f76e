// Package types provides core types shared across the mcpflow framework.
// This package has ZERO dependencies on other mcpflow packages to avoid
// circular imports. All other packages should import types from here.
package types
