// Package core defines the toolkit-agnostic event loop contracts used by the
// rest of the browser shell.
//
// Application code (window and tab lifecycle, networking, IPC) schedules
// timers, watches descriptors, and traps signals through a [Manager], and
// drives a loop through an [Implementation]. Events are delivered to
// [Receiver] values, which the loop machinery only ever references weakly:
// a timer or posted event never keeps its target alive, and an event for a
// destroyed target is silently dropped.
//
// The concrete adapter over the native run loop lives in package shellloop.
package core
