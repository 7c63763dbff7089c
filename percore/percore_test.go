package percore

// Get indexes its slot array by the calling hart's logical ID, which
// comes straight out of the thread-pointer register — only meaningful on
// a real or emulated RISC-V hart where cpu.SetCurrentLogicalID has run,
// so (matching the precedent set by epilogue_test.go for CSR-backed
// code) this package has no host-runnable unit tests; its behavior is
// covered by on-target integration testing instead.
