package epilogue

// TryEnter/Leave read the calling hart's logical ID (via cpu.Current) and
// the sstatus CSR — both asm-backed and only meaningful on a real or
// emulated RISC-V hart, so (matching the precedent set by
// ticketlock_test.go and trap_test.go for CSR-backed code) this package
// has no host-runnable unit tests; its behavior is covered by on-target
// integration testing instead.
