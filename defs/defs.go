// Package defs holds the small set of types and error codes shared across
// the virtual memory core, mirroring the kernel-wide defs package a real
// dispatcher would also import.
package defs

// / Err_t is a kernel error code. Zero means success; all other values are
// / negative, matching the -defs.EFOO return convention used on every
// / syscall-adjacent path.
type Err_t int

const (
	/// EFAULT: the user address is null, in kernel space, or unmapped and
	/// not plausibly stack growth.
	EFAULT Err_t = -1 - iota
	/// ENOMEM: no physical frame or page-table node could be allocated.
	ENOMEM
	/// EINVAL: a syscall argument failed validation (bad fd, misaligned
	/// address).
	EINVAL
	/// ENAMETOOLONG: a bounded copy (e.g. a user string) exceeded its cap.
	ENAMETOOLONG
	/// EEXIST: mmap or segment registration found an existing SPTE or
	/// hardware mapping in the requested range.
	EEXIST
	/// ENOSPC: the swap device has no free slot.
	ENOSPC
)

// / Tid_t identifies a kernel thread.
type Tid_t int

// / Pid_t identifies a process / address space owner.
type Pid_t int

// / ExitKilled is the exit status assigned to a process terminated for an
// / invalid user memory access.
const ExitKilled = -1
