// Package events provides a lightweight in-process publish/subscribe
// mechanism for job lifecycle transitions, decoupling the queue and worker
// from components that merely observe them.
package events
