// Package habit holds the habit record and the write-time validation rules.
//
// A Habit stores only a time of day (Clock). The reminder scheduler combines
// it with the current date to find the due instant and moves it forward after
// each successful reminder. Validation is the store's job; the scheduler
// processes whatever it reads.
package habit
