// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package cache provides a small thread-safe TTL cache.

The availability service stores generated slot grids here for a short time.
Keys are namespaced by business ("slots:<business_id>:<hash>") so that a booking
or schedule change can drop one tenant's entries with DeletePrefix.

Usage:

	c := cache.New(30 * time.Second)
	defer c.Close()

	key := cache.GenerateKey("slots:"+businessID, params)
	if v, ok := c.Get(key); ok {
	    return v.([]models.Slot), nil
	}
	c.Set(key, slots)

Statistics (hits, misses, evictions) are exposed through GetStats and HitRate.
*/
package cache
