// Package coordinator assembles the substrate into a runnable system: the
// chef (lead) agent that triages requests, the worker pool, the caller-side
// response manager, and the drive loop that drains the bus and fires debate
// deadlines.
//
// The external entry point is System.ProcessRequest: it publishes a REQUEST
// to the chef and blocks on a per-thread future until a RESPONSE, ERROR or
// DEBATE_CONCLUSION arrives, or the deadline expires.
package coordinator
