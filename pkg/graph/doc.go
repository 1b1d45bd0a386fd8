// Package graph defines the design graph types for implicit3d.
// The design graph is an immutable DAG of primitives, transforms,
// rounded booleans, and groups that describes a scene of solids.
package graph
