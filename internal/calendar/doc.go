// Package calendar turns loosely structured event descriptions into the
// event bodies accepted by the calendar service, and defines the narrow
// client interface used to submit them.
//
// Event synthesis is pure: BuildEvent depends only on its input and the
// Synthesizer's location, never on the current time.
package calendar
