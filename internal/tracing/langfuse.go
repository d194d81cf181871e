// Package tracing wires optional Langfuse tracing into the eino model calls
// the application makes during graph extraction and answer generation.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost matches a local docker-compose Langfuse deployment.
const defaultHost = "http://localhost:3000"

// Setup initialises the Langfuse callback handler when LANGFUSE_PUBLIC_KEY
// and LANGFUSE_SECRET_KEY are both set. The returned flush function must be
// called before process exit so buffered traces are sent. When Langfuse is
// not configured the third return value is false and tracing stays disabled.
func Setup() (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})

	return handler, flusher, true
}
