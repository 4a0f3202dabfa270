// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"

	"github.com/azera-ai/azera/pkg/api/middleware"
)

// getRequestID extracts the request ID from the request context.
func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
