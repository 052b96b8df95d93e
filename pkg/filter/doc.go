// Package filter recommends allow-list removals.
//
// Thresholds come from my own profile and from the IQR fences of the
// not-activated and multiple-win counts across the population. Each user is
// then checked against an ordered list of rules and the first match decides.
package filter
