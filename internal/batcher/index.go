// Package batcher provides request batching (coalescing) for a remote HTTP endpoint.
//
// Callers submit individual payloads addressed to a destination and get back a
// Result that settles with that payload's response. A dispatcher drains the
// intake queue on a fixed interval, groups the drained items by destination and
// issues one call per destination: the raw payload when the group has a single
// item, or a JSON array of all payloads sent to the destination's combined
// variant otherwise. Combined responses are split back positionally.
//
// Example configuration:
//
//	{
//	  "flushInterval": 200,
//	  "dispatchConcurrency": 4,
//	  "multipleQuery": "multiple=true"
//	}
package batcher
