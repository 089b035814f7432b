// Package research runs background research agents in a bounded
// concurrent pool and manages their markdown artifacts.
package research
