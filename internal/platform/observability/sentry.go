// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package observability reports server-side failures to Sentry.

When no DSN is configured [Init] is a no-op and every capture helper becomes
free, so local development and tests never talk to the network.
*/
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
)

// flushTimeout bounds how long shutdown waits for buffered events.
const flushTimeout = 2 * time.Second

// Init configures the global Sentry client. An empty DSN disables reporting.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          constants.AppName + "@" + constants.AppVersion,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("observability: sentry init failed: %w", err)
	}

	return nil
}

// Flush drains buffered events before the process exits.
func Flush() {
	sentry.Flush(flushTimeout)
}

// CaptureError reports err, tagged with the request ID carried by context.
func CaptureError(context context.Context, err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if requestID := ctxutil.GetRequestID(context); requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value together with its stack.
func CapturePanic(context context.Context, recovered any, stack []byte) {
	sentry.WithScope(func(scope *sentry.Scope) {
		if requestID := ctxutil.GetRequestID(context); requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		scope.SetExtra("panic", fmt.Sprint(recovered))
		scope.SetExtra("stack", string(stack))
		sentry.CaptureMessage("panic in request")
	})
}
