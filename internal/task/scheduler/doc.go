// Package scheduler triggers registered jobs on cron or interval schedules.
//
// Schedules are kept as definitions so they survive Stop/Start and a timezone
// change (which rebuilds the cron instance). Each schedule skips a tick while
// its previous run is still in flight.
package scheduler
