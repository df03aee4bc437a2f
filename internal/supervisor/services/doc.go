// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package services adapts BookPro components to suture's Serve pattern.

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTPServerService wraps *http.Server. Cancelling the context calls Shutdown
with a bounded timeout; a listen failure is returned for restart.

WebSocketHubService runs the live booking feed hub and logs how many
dashboards a crash disconnected.

JobService adapts Start/Stop loops such as *jobs.Periodic (hold expiry,
appointment reminders, subscription sync, audit retention).

EventRouterService runs the watermill router. A router that stops on its own
is not restarted.

Every wrapper implements fmt.Stringer so supervisor logs name the service.
*/
package services
