// Package tree turns a parsed configuration document into an immutable
// nested-set tree and answers lookups against it.
//
// Loading is a two step pipeline:
//
//	staged, err := tree.Build(doc)        // flatten into depth-ordered staged nodes
//	t, err := tree.Materialize(staged)    // link nodes and number the nested set
//
// Every [Node] carries a (Left, Right) interval. A node's descendants are
// exactly the nodes whose Left falls inside its interval, so subtree and
// ancestor reads never walk parent chains.
//
// # Lookups
//
//   - [Tree.ByName] finds a node anywhere in the tree ([EntireTree], case
//     folded) or among one node's direct children ([ChildrenOf], exact).
//     When several nodes match, the one with the widest span wins and ties
//     go to the leftmost node.
//   - [Tree.DirectChildren] lists a node's children in document order.
//   - [Tree.Dig] groups nodes by level, down to a requested depth.
//   - [Tree.Get] and [Result.Get] chain key lookups: db.Get("host") yields
//     either a leaf value or a branch that can be indexed further.
//
// # Errors
//
//   - [ErrInvalidDocument] - empty or unusable input document
//   - [ErrOrphanNode] - a staged node's parent was never materialized
//   - [ErrInvalidArgument] - bad query parameters, such as Dig(0)
//   - [ErrBlankName] - a node has an empty name
//   - [ErrInvalidTree] - persisted nodes do not form a valid nested set
package tree
