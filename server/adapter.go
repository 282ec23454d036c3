package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// FiberResponseWriter presents a fiber.Ctx as an http.ResponseWriter so
// net/http handlers (the promhttp metrics handler in particular) can serve
// responses through Fiber routes.
type FiberResponseWriter struct {
	ctx    *fiber.Ctx
	status int
	header http.Header
}

// NewFiberResponseWriter wraps ctx with an empty header map and a 200 status.
func NewFiberResponseWriter(ctx *fiber.Ctx) *FiberResponseWriter {
	return &FiberResponseWriter{
		ctx:    ctx,
		status: 200,
		header: make(http.Header),
	}
}

// Header returns the headers accumulated before the first Write.
func (w *FiberResponseWriter) Header() http.Header {
	return w.header
}

// Write flushes the buffered headers and status into the Fiber context and
// forwards the body bytes.
func (w *FiberResponseWriter) Write(data []byte) (int, error) {
	for key, values := range w.header {
		for _, value := range values {
			w.ctx.Set(key, value)
		}
	}

	if w.status != 200 {
		w.ctx.Status(w.status)
	}

	return w.ctx.Write(data)
}

// WriteHeader records the status; it is applied on the first Write.
func (w *FiberResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}