// Package rc implements reference-counted shared cells: single
// allocations holding a control block (strong and weak counters)
// followed by the owned value.
//
// # Handles
//
// Strong handles own the value; Weak handles observe it. Cloning a
// handle of either kind only bumps a counter. Dropping the last Strong
// destroys the value in place; dropping the last Weak releases the
// backing memory. The block holds one weak unit on behalf of all
// strong handles combined, released together with value destruction,
// which keeps the two thresholds independent:
//
//	Live(strong>0) → ValueDead(strong=0, weak>0) → Freed
//
// # Shapes
//
// Values may be variable-size. A handle carries a Shape — a fixed
// ValueType, or a Seq of n elements — which is enough to locate, size
// and destroy the value and to recompute the exact (size, align) the
// block was allocated with. AsSeq and AsDyn reinterpret a handle's
// shape without touching the block, the way unsized coercions turn a
// thin reference into a fat one.
//
// # Failure
//
// Constructors can fail two ways, kept distinct: the allocator refused
// ([alloc] allocation) or the value refused to move in ([construct]
// construct_failed, memory already reserved and then released).
// Everything else is total; Weak.Upgrade reports "value already dead"
// as a plain boolean, not an error. Counter overflow panics rather
// than wrapping, since a wrapped counter would destroy a live value.
//
// # Thread Safety
//
// Not safe for concurrent use: counters are plain, unsynchronized
// integers. An atomic variant is a separate component, not a mode of
// this one.
package rc
