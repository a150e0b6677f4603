// Package graphom maps graph database nodes and relationships onto typed
// Go objects, and compiles structured filter/order specifications into
// parameterized Cypher.
//
// The engine is built from an immutable [Model] of fragment, relationship
// and view descriptors declared once at startup. A [Store] wires the model
// to an [Executor] (see databases/neo4j for the driver-backed one), and a
// [Session] tracks snapshots of loaded objects for one unit of work so
// that saves only write what actually changed.
//
//	model, _ := graphom.NewModel(fragments, views)
//	store := graphom.NewStore(model, db)
//	sess := store.NewSession()
//	issues, _ := graphom.Manage[*Issue](sess, "Issue")
//
//	closed, err := issues.LoadAll(ctx, graphom.NewFilter(
//	    graphom.Where("issue.state").Eq("closed"),
//	))
//
// Sessions are intended for single-threaded use within one unit of work.
// The model and its subtype registry may be shared read-only across
// concurrent units once registration is complete.
package graphom
