// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package supervisor runs the long-lived parts of the BookPro server under a
suture v4 supervisor tree.

# Layout

	RootSupervisor ("bookpro")
	├── WorkerSupervisor ("worker-layer")
	│   ├── audit-recorder
	│   ├── job:hold-expiry
	│   ├── job:reminders
	│   ├── job:audit-retention
	│   └── job:subscription-sync (billing enabled only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── event-router
	│   └── websocket-hub
	└── APISupervisor ("api-layer")
	    └── http-server

Each layer counts failures on its own. A service that keeps failing is
backed off without affecting its siblings in other layers.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddWorkerService(recorder)
	tree.AddWorkerService(services.NewJobService(booking.NewHoldExpiryJob(bookings, time.Minute)))
	tree.AddMessagingService(services.NewEventRouterService(router))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

Supervisor events (start, failure, backoff, restart) are logged through
sutureslog into the zerolog stream via logging.NewSlogLogger.

# Shutdown

Cancelling the context stops every layer. Services that do not return within
TreeConfig.ShutdownTimeout show up in UnstoppedServiceReport, which the
server logs before exiting.
*/
package supervisor
