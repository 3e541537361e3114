// Package conversation tracks where every user stands in a guided,
// multi-step dialogue and the data accumulated along the way.
//
// A Manager keeps one State per user in memory and writes it through to a
// RowStore after every mutation, so a restarted process can pick the
// dialogue up where it stopped. On startup Reload restores the rows of
// active accounts and purges everything else.
package conversation
