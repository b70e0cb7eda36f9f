// Package scheduler arms lock and unlock timers for the schedule table.
//
// A Manager owns the table, one lock timer per enabled schedule and at most
// one auto-unlock timer per schedule. Every mutation, timer callback and
// persistence write goes through the Manager's single mutex; the injected
// Locker is always called with that mutex released so it may call back into
// the Manager.
//
// Timers are event-driven. The only background goroutine watches for wall
// clock jumps (suspend/resume, manual clock changes) and re-arms wall-clock
// schedules when one is detected.
package scheduler
