package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	componentKey contextKey = iota
	workspaceKey
	tagKey
)

// WithComponent adds a component name to the context. Component names
// identify the subsystem generating logs (e.g., "shadow-store", "manager").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithWorkspace adds the workspace root to the context.
func WithWorkspace(ctx context.Context, workspace string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspace)
}

// WithTag adds a checkpoint tag to the context.
func WithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey, tag)
}

// ComponentFromContext extracts the component name from the context.
// Returns empty string if not set.
func ComponentFromContext(ctx context.Context) string {
	if v := ctx.Value(componentKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WorkspaceFromContext extracts the workspace root from the context.
// Returns empty string if not set.
func WorkspaceFromContext(ctx context.Context) string {
	if v := ctx.Value(workspaceKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// TagFromContext extracts the checkpoint tag from the context.
// Returns empty string if not set.
func TagFromContext(ctx context.Context) string {
	if v := ctx.Value(tagKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
