// Package delivery drives the periodic reconcile pass and sends every new
// notice to the configured chat.
//
// Ticks never overlap. Delivery is at-most-once: a notice whose send fails
// is logged and counted, never retried.
package delivery
